package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paklog/order-management/internal/domain"
)

func seedOutbox(t *testing.T, store *Store, ids ...string) {
	t.Helper()
	repo := NewOrderRepository(store)
	records := make([]domain.OutboxRecord, 0, len(ids))
	for i, id := range ids {
		record := testRecord(id)
		record.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
		records = append(records, record)
	}
	if err := repo.Create(context.Background(), testOrder("order-seed", "seller-seed", "idem-seed"), records); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestOutboxRepository_PullUnpublishedOrderAndLimit(t *testing.T) {
	t.Parallel()

	store := NewStore()
	seedOutbox(t, store, "rec-1", "rec-2", "rec-3")
	repo := NewOutboxRepository(store)

	records, err := repo.PullUnpublished(context.Background(), 2)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Порядок создания сохраняется.
	if records[0].ID != "rec-1" || records[1].ID != "rec-2" {
		t.Fatalf("unexpected order: %s, %s", records[0].ID, records[1].ID)
	}
}

func TestOutboxRepository_MarkPublished(t *testing.T) {
	t.Parallel()

	store := NewStore()
	seedOutbox(t, store, "rec-1", "rec-2")
	repo := NewOutboxRepository(store)

	if err := repo.MarkPublished(context.Background(), "rec-1"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	records, _ := repo.PullUnpublished(context.Background(), 0)
	if len(records) != 1 || records[0].ID != "rec-2" {
		t.Fatalf("expected only rec-2 pending, got %+v", records)
	}

	// Повторная пометка безвредна.
	if err := repo.MarkPublished(context.Background(), "rec-1"); err != nil {
		t.Fatalf("second mark failed: %v", err)
	}

	if err := repo.MarkPublished(context.Background(), "ghost"); !errors.Is(err, domain.ErrOutboxRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOutboxRepository_Stats(t *testing.T) {
	t.Parallel()

	store := NewStore()
	repo := NewOutboxRepository(store)

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("expected empty stats, got %+v", stats)
	}

	seedOutbox(t, store, "rec-1", "rec-2")
	stats, _ = repo.Stats(context.Background())
	if stats.PendingCount != 2 {
		t.Fatalf("expected 2 pending, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected oldest timestamp to be set")
	}

	_ = repo.MarkPublished(context.Background(), "rec-1")
	_ = repo.MarkPublished(context.Background(), "rec-2")
	stats, _ = repo.Stats(context.Background())
	if stats.PendingCount != 0 {
		t.Fatalf("expected no pending after publishing, got %d", stats.PendingCount)
	}
}
