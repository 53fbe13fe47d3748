package syncer

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"chartkit/internal/chart"
	"chartkit/internal/outbox"
)

// testQueue opens a throwaway outbox with n queued mutations.
func testQueue(t *testing.T, n int) *outbox.Queue {
	t.Helper()
	q, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	c := &chart.Chart{SchemaVersion: chart.SchemaVersion, Title: "T"}
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		if err := q.QueueMutation(id, c, int64(i)); err != nil {
			t.Fatalf("QueueMutation() failed: %v", err)
		}
	}
	return q
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestStatus_InitiallyIdle(t *testing.T) {
	o := New(testQueue(t, 0), okSink(), discardLogger())
	if got := o.Status(); got != StatusIdle {
		t.Errorf("Status = %s, want idle", got)
	}
}

func okSink() outbox.Sink {
	return outbox.SinkFunc(func(ctx context.Context, rec outbox.Record) error {
		return nil
	})
}

func TestSyncNow_SuccessTransitions(t *testing.T) {
	o := New(testQueue(t, 2), okSink(), discardLogger())

	var transitions []Status
	defer o.OnStatus(func(s Status) { transitions = append(transitions, s) })()

	o.SyncNow(context.Background())

	// Immediate current status, then syncing, then synced.
	want := []Status{StatusIdle, StatusSyncing, StatusSynced}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}

func TestSyncNow_SinkErrorStillSyncs(t *testing.T) {
	// A sink rejection keeps items queued but the drain itself succeeds.
	failing := outbox.SinkFunc(func(ctx context.Context, rec outbox.Record) error {
		return errors.New("remote down")
	})
	q := testQueue(t, 1)
	o := New(q, failing, discardLogger())

	o.SyncNow(context.Background())
	if got := o.Status(); got != StatusSynced {
		t.Errorf("Status = %s, want synced (rejections are not drain failures)", got)
	}
	n, _ := q.Len()
	if n != 1 {
		t.Errorf("Len = %d, want rejected item kept", n)
	}
}

func TestSyncNow_PanickingSinkMapsToError(t *testing.T) {
	panicking := outbox.SinkFunc(func(ctx context.Context, rec outbox.Record) error {
		panic("sink bug")
	})
	o := New(testQueue(t, 1), panicking, discardLogger())

	o.SyncNow(context.Background())
	if got := o.Status(); got != StatusError {
		t.Errorf("Status = %s, want error after panic", got)
	}
}

func TestSyncNow_ErrorThenRecovery(t *testing.T) {
	q := testQueue(t, 1)
	fail := true
	sink := outbox.SinkFunc(func(ctx context.Context, rec outbox.Record) error {
		if fail {
			panic("first attempt")
		}
		return nil
	})
	o := New(q, sink, discardLogger())

	o.SyncNow(context.Background())
	if o.Status() != StatusError {
		t.Fatalf("Status = %s, want error", o.Status())
	}

	fail = false
	o.SyncNow(context.Background())
	if o.Status() != StatusSynced {
		t.Errorf("Status = %s, want synced after recovery", o.Status())
	}
	n, _ := q.Len()
	if n != 0 {
		t.Errorf("Len = %d, want 0", n)
	}
}

func TestSyncNow_SingleFlight(t *testing.T) {
	q := testQueue(t, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	sink := outbox.SinkFunc(func(ctx context.Context, rec outbox.Record) error {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return nil
	})
	o := New(q, sink, discardLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.SyncNow(context.Background())
	}()

	<-started
	// A trigger while one drain is in flight is dropped, not queued.
	o.SyncNow(context.Background())
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("sink invoked %d times, want 1", calls)
	}
}

func TestOnStatus_ImmediateDeliveryAndUnsubscribe(t *testing.T) {
	o := New(testQueue(t, 0), okSink(), discardLogger())

	var got []Status
	unsub := o.OnStatus(func(s Status) { got = append(got, s) })
	if len(got) != 1 || got[0] != StatusIdle {
		t.Fatalf("immediate delivery = %v, want [idle]", got)
	}

	unsub()
	o.SyncNow(context.Background())
	if len(got) != 1 {
		t.Errorf("listener fired after unsubscribe: %v", got)
	}
}

func TestDialProbe(t *testing.T) {
	probe := DialProbe("127.0.0.1:1", 200*time.Millisecond)
	if probe(context.Background()) {
		t.Error("probe reported reserved port reachable")
	}
}
