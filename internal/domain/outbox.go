package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxRecord — запись transactional outbox. Создаётся в одной атомарной
// единице с изменением заказа; поле Published меняется ровно один раз
// false → true после подтверждения доставки брокером. Записи не удаляются
// этой подсистемой — ретенция является внешней заботой.
type OutboxRecord struct {
	ID        string
	EventType string
	// Subject — идентификатор заказа; брокер использует его как ключ
	// партиционирования, сохраняя порядок событий внутри заказа.
	Subject   string
	Payload   []byte
	CreatedAt time.Time
	Published bool
}

// NewOutboxRecord сериализует envelope события в запись outbox.
func NewOutboxRecord(event Event) (OutboxRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxRecord{}, fmt.Errorf("marshal event envelope: %w", err)
	}
	return OutboxRecord{
		ID:        uuid.NewString(),
		EventType: event.Type,
		Subject:   event.Subject,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxRepository — сторона чтения outbox для публикатора.
// Запись в outbox идёт только через атомарные Create/Save в OrderRepository.
type OutboxRepository interface {
	// PullUnpublished возвращает до limit записей с published=false в порядке создания.
	PullUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)
	// MarkPublished помечает запись опубликованной; вызывается только после ack брокера.
	MarkPublished(ctx context.Context, id string) error
	// Stats возвращает размер и возраст backlog для метрик.
	Stats(ctx context.Context) (OutboxStats, error)
}

// EventPublisher доставляет запись outbox брокеру; обязан быть идемпотентным
// со стороны потребителей (at-least-once доставка).
type EventPublisher interface {
	Publish(ctx context.Context, record OutboxRecord) error
}
