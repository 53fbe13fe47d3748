// Package syncer drives outbox replay opportunistically and broadcasts
// coarse sync status.
//
// Triggers are app start, the transition from offline to online, and explicit
// user action. Only one sync may be in flight: a trigger that arrives while
// one is running is dropped, not queued. The next natural trigger picks up
// any remaining items.
package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"chartkit/internal/outbox"
)

// Status is the coarse sync state broadcast to subscribers.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusError   Status = "error"
)

// StatusListener observes status transitions.
type StatusListener func(Status)

type statusEntry struct{ fn StatusListener }

// Orchestrator coordinates outbox drains against a remote sink.
type Orchestrator struct {
	queue  *outbox.Queue
	sink   outbox.Sink
	logger *log.Logger

	mu        sync.Mutex
	status    Status
	syncing   bool
	listeners []*statusEntry
}

// New creates an orchestrator draining queue into sink. If logger is nil, a
// default logger writing to stderr is used.
func New(queue *outbox.Queue, sink outbox.Sink, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Orchestrator{
		queue:  queue,
		sink:   sink,
		logger: logger,
		status: StatusIdle,
	}
}

// Status returns the current sync status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// OnStatus registers a status listener and returns its unsubscribe function.
// The listener immediately receives the current status, then every subsequent
// transition.
func (o *Orchestrator) OnStatus(l StatusListener) func() {
	o.mu.Lock()
	e := &statusEntry{fn: l}
	o.listeners = append(o.listeners, e)
	current := o.status
	o.mu.Unlock()

	l(current)

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, cur := range o.listeners {
			if cur == e {
				o.listeners = append(o.listeners[:i], o.listeners[i+1:]...)
				return
			}
		}
	}
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	o.status = s
	listeners := make([]*statusEntry, len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	for _, e := range listeners {
		e.fn(s)
	}
}

// SyncNow drains the outbox once. A call while a sync is already in flight is
// a no-op. Drain failures, including panics, are mapped to the error status
// and never propagate to the trigger source.
func (o *Orchestrator) SyncNow(ctx context.Context) {
	o.mu.Lock()
	if o.syncing {
		o.mu.Unlock()
		return
	}
	o.syncing = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.syncing = false
		o.mu.Unlock()
	}()

	o.setStatus(StatusSyncing)

	if err := o.drain(ctx); err != nil {
		o.logger.Printf("sync failed: %v", err)
		o.setStatus(StatusError)
		return
	}
	o.setStatus(StatusSynced)
}

// drain runs one outbox pass, containing panics from the sink.
func (o *Orchestrator) drain(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return o.queue.Process(ctx, o.sink)
}
