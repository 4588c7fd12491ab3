package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testRecord(method, status string, age time.Duration) *Record {
	return &Record{
		ConnectionID: "conn-1",
		RequestID:    "1",
		Method:       method,
		Status:       status,
		Model:        "gpt-4o-mini",
		TotalTokens:  42,
		Duration:     150 * time.Millisecond,
		CreatedAt:    time.Now().Add(-age),
	}
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteSaveAndList(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	older := testRecord("generate", StatusOK, time.Hour)
	older.ID = "rec-older"
	newer := testRecord("stream", StatusCancelled, time.Minute)
	newer.ID = "rec-newer"

	for _, rec := range []*Record{older, newer} {
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	records, err := store.List(ctx, time.Time{}, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != "rec-newer" {
		t.Errorf("records not newest first: %s", records[0].ID)
	}
	if records[0].Status != StatusCancelled || records[0].Method != "stream" {
		t.Errorf("record fields not round-tripped: %+v", records[0])
	}
	if records[0].Duration != 150*time.Millisecond {
		t.Errorf("duration = %v", records[0].Duration)
	}
}

func TestSQLiteListSince(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("generate", StatusOK, 48*time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, testRecord("generate", StatusOK, time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	records, err := store.List(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records since 1h ago, want 1", len(records))
	}
}

func TestSQLitePruneBefore(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("generate", StatusOK, 40*24*time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, testRecord("generate", StatusOK, time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	deleted, err := store.PruneBefore(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PruneBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, testRecord("generate", StatusOK, 2*time.Hour)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, testRecord("cancel", StatusOK, time.Minute)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	records, err := store.List(ctx, time.Time{}, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 || records[0].Method != "cancel" {
		t.Errorf("unexpected listing: %+v", records)
	}

	deleted, err := store.PruneBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestRecorderPersistsAsynchronously(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, 16)

	if ok := rec.Record(testRecord("generate", StatusOK, 0)); !ok {
		t.Fatal("record was dropped")
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestRecorderFillsIDAndTimestamp(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, 16)

	r := &Record{Method: "generate", Status: StatusOK}
	rec.Record(r)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	records, err := store.List(context.Background(), time.Time{}, 1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].ID == "" {
		t.Error("ID not assigned")
	}
	if records[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}
}

// blockingStore never finishes a save until released, forcing queue pressure.
type blockingStore struct {
	MemoryStore
	release chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, rec *Record) error {
	<-s.release
	return s.MemoryStore.Save(ctx, rec)
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}

	var hooked int
	rec := NewRecorder(store, 1, WithDropHook(func() { hooked++ }))

	// With a queue of one and a blocked worker, at most two records can be
	// in flight; the rest must be dropped.
	for i := 0; i < 5; i++ {
		rec.Record(testRecord("generate", StatusOK, 0))
	}

	if rec.Dropped() == 0 {
		t.Error("expected dropped records under queue pressure")
	}
	if hooked == 0 {
		t.Error("drop hook not invoked")
	}

	close(store.release)
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestPrunerPrune(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Save(ctx, testRecord("generate", StatusOK, 45*24*time.Hour))
	store.Save(ctx, testRecord("generate", StatusOK, time.Hour))

	pruner := NewPruner(store, 30, "")
	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}

func TestPrunerDisabledRetention(t *testing.T) {
	store := NewMemoryStore()
	store.Save(context.Background(), testRecord("generate", StatusOK, 400*24*time.Hour))

	pruner := NewPruner(store, 0, "")
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0 with retention disabled", deleted)
	}
}

func TestPrunerRejectsBadSchedule(t *testing.T) {
	pruner := NewPruner(NewMemoryStore(), 30, "not-a-cron-expression")
	if err := pruner.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
