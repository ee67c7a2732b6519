package memory

import (
	"context"
	"fmt"

	"github.com/paklog/order-management/internal/domain"
)

// OutboxRepository — in-memory сторона чтения transactional outbox.
type OutboxRepository struct {
	store *Store
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)

// NewOutboxRepository создаёт репозиторий поверх общего хранилища.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// PullUnpublished возвращает до limit неопубликованных записей в порядке создания.
func (r *OutboxRepository) PullUnpublished(_ context.Context, limit int) ([]domain.OutboxRecord, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.OutboxRecord
	for _, id := range s.outboxOrder {
		record, ok := s.outbox[id]
		if !ok || record.Published {
			continue
		}
		records = append(records, cloneRecord(record))
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}

// MarkPublished помечает запись опубликованной. Повторный вызов безвреден:
// флаг меняется только в одну сторону.
func (r *OutboxRepository) MarkPublished(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.outbox[id]
	if !ok {
		return fmt.Errorf("%w: outbox id %s", domain.ErrOutboxRecordNotFound, id)
	}
	record.Published = true
	s.outbox[id] = record
	return nil
}

// Stats возвращает размер и возраст backlog неопубликованных записей.
func (r *OutboxRepository) Stats(_ context.Context) (domain.OutboxStats, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.OutboxStats
	for _, id := range s.outboxOrder {
		record, ok := s.outbox[id]
		if !ok || record.Published {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || record.CreatedAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = record.CreatedAt
		}
	}
	return stats, nil
}
