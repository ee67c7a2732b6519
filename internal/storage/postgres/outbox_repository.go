package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paklog/order-management/internal/domain"
)

type outboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository создаёт PostgreSQL-реализацию стороны чтения outbox.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepository{db: store.DB()}
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)

// PullUnpublished возвращает до limit неопубликованных записей в порядке создания.
func (r *outboxRepository) PullUnpublished(ctx context.Context, limit int) ([]domain.OutboxRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, subject, payload, created_at, published
		FROM outbox_events
		WHERE NOT published
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished outbox records: %w", err)
	}
	defer rows.Close()

	var records []domain.OutboxRecord
	for rows.Next() {
		var record domain.OutboxRecord
		if err := rows.Scan(&record.ID, &record.EventType, &record.Subject,
			&record.Payload, &record.CreatedAt, &record.Published); err != nil {
			return nil, fmt.Errorf("scan outbox record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox records: %w", err)
	}
	return records, nil
}

// MarkPublished помечает запись опубликованной; флаг меняется только false → true.
func (r *outboxRepository) MarkPublished(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET published = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark outbox record published: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: outbox id %s", domain.ErrOutboxRecordNotFound, id)
	}
	return nil
}

// Stats возвращает размер и возраст backlog неопубликованных записей.
func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(created_at)
		FROM outbox_events
		WHERE NOT published
	`).Scan(&stats.PendingCount, &oldest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.OutboxStats{}, fmt.Errorf("query outbox stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time
	}
	return stats, nil
}
