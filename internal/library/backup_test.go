package library

import (
	"path/filepath"
	"testing"
	"time"
)

func TestBackup_SnapshotsEverything(t *testing.T) {
	s := testStore(t)
	idActive, _ := s.SaveChart(titledChart("Active"), "Active", nil, "")
	idTrash, _ := s.SaveChart(titledChart("Trash"), "Trash", nil, "")
	if err := s.SetStatus(idTrash, StatusTrashed); err != nil {
		t.Fatalf("SetStatus() failed: %v", err)
	}

	ts, err := s.Backup()
	if err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}
	if ts == 0 {
		t.Fatal("Backup returned zero key")
	}

	// Trashed items are part of the snapshot and restorable.
	ok, err := s.RestoreFromBackup(ts, idTrash)
	if err != nil {
		t.Fatalf("RestoreFromBackup() failed: %v", err)
	}
	if !ok {
		t.Error("trashed item missing from backup")
	}
	_ = idActive
}

func TestBackup_SameMillisecondKeysDistinct(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	s, err := Open(filepath.Join(t.TempDir(), "library.db"), Options{
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	ts1, err := s.Backup()
	if err != nil {
		t.Fatalf("first Backup() failed: %v", err)
	}
	ts2, err := s.Backup()
	if err != nil {
		t.Fatalf("second Backup() failed: %v", err)
	}
	if ts1 == ts2 {
		t.Errorf("backups share key %d", ts1)
	}
}

func TestListBackups_NewestFirst(t *testing.T) {
	s := testStore(t)
	ts1, _ := s.Backup()
	ts2, _ := s.Backup()

	stamps, err := s.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups() failed: %v", err)
	}
	if len(stamps) != 2 {
		t.Fatalf("got %d backups, want 2", len(stamps))
	}
	if stamps[0] < stamps[1] {
		t.Errorf("order = %v, want newest first", stamps)
	}
	_ = ts1
	_ = ts2
}

func TestRestoreFromBackup_RoundTrip(t *testing.T) {
	s := testStore(t)
	id, err := s.SaveChart(titledChart("Original"), "Original", []string{"keep"}, "")
	if err != nil {
		t.Fatalf("SaveChart() failed: %v", err)
	}
	_ = s.MarkFavorite(id, true)

	ts, err := s.Backup()
	if err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}

	// Mutate after the backup.
	if _, err := s.SaveChart(titledChart("Mutated"), "Mutated", nil, id); err != nil {
		t.Fatalf("mutating SaveChart() failed: %v", err)
	}
	_ = s.MarkFavorite(id, false)

	ok, err := s.RestoreFromBackup(ts, id)
	if err != nil {
		t.Fatalf("RestoreFromBackup() failed: %v", err)
	}
	if !ok {
		t.Fatal("RestoreFromBackup reported nothing restored")
	}

	items, err := s.ListCharts(Filter{})
	if err != nil {
		t.Fatalf("ListCharts() failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Title != "Original" {
		t.Errorf("Title = %q, want Original", items[0].Title)
	}
	if !items[0].Favorite {
		t.Error("restore lost favorite flag")
	}
	if len(items[0].Tags) != 1 || items[0].Tags[0] != "keep" {
		t.Errorf("Tags = %v, want [keep]", items[0].Tags)
	}
}

func TestRestoreFromBackup_LeavesOthersAlone(t *testing.T) {
	s := testStore(t)
	idA, _ := s.SaveChart(titledChart("A"), "A", nil, "")
	idB, _ := s.SaveChart(titledChart("B"), "B", nil, "")

	ts, err := s.Backup()
	if err != nil {
		t.Fatalf("Backup() failed: %v", err)
	}

	_, _ = s.SaveChart(titledChart("A2"), "A2", nil, idA)
	_, _ = s.SaveChart(titledChart("B2"), "B2", nil, idB)

	if _, err := s.RestoreFromBackup(ts, idA); err != nil {
		t.Fatalf("RestoreFromBackup() failed: %v", err)
	}

	b, err := s.GetChart(idB)
	if err != nil {
		t.Fatalf("GetChart() failed: %v", err)
	}
	if b.Title != "B2" {
		t.Errorf("untouched item title = %q, want B2", b.Title)
	}
}

func TestRestoreFromBackup_MissingIsNoOp(t *testing.T) {
	s := testStore(t)
	id, _ := s.SaveChart(titledChart("X"), "X", nil, "")
	ts, _ := s.Backup()

	ok, err := s.RestoreFromBackup(9999999, id)
	if err != nil {
		t.Fatalf("RestoreFromBackup(bad ts) failed: %v", err)
	}
	if ok {
		t.Error("missing backup reported restored")
	}

	ok, err = s.RestoreFromBackup(ts, "no-such-id")
	if err != nil {
		t.Fatalf("RestoreFromBackup(bad id) failed: %v", err)
	}
	if ok {
		t.Error("missing item reported restored")
	}
}

func TestEnsureDailyBackup_OncePerDay(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	s, err := Open(filepath.Join(t.TempDir(), "library.db"), Options{
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	_, wrote, err := s.EnsureDailyBackup()
	if err != nil {
		t.Fatalf("EnsureDailyBackup() failed: %v", err)
	}
	if !wrote {
		t.Fatal("first call did not back up")
	}

	// Later the same day: no new backup.
	now = now.Add(6 * time.Hour)
	_, wrote, err = s.EnsureDailyBackup()
	if err != nil {
		t.Fatalf("second EnsureDailyBackup() failed: %v", err)
	}
	if wrote {
		t.Error("second call backed up within the same day")
	}

	// Next day: a new backup.
	now = now.Add(24 * time.Hour)
	_, wrote, err = s.EnsureDailyBackup()
	if err != nil {
		t.Fatalf("third EnsureDailyBackup() failed: %v", err)
	}
	if !wrote {
		t.Error("next-day call did not back up")
	}

	stamps, err := s.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups() failed: %v", err)
	}
	if len(stamps) != 2 {
		t.Errorf("got %d backups, want 2", len(stamps))
	}
}
