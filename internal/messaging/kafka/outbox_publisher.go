package kafka

import (
	"context"
	"fmt"

	"github.com/paklog/order-management/internal/domain"
)

// OutboxTopicPublisher публикует записи outbox в заданный Kafka topic.
// Payload записи — готовый envelope события, он уходит в брокер как есть;
// ключом служит subject (идентификатор заказа), так что события одного
// заказа попадают в одну партицию и сохраняют порядок.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.EventPublisher {
	if topic == "" {
		topic = TopicFulfillmentOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *OutboxTopicPublisher) Publish(ctx context.Context, record domain.OutboxRecord) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := record.Subject
	if key == "" {
		key = record.ID
	}

	return p.producer.PublishRaw(p.topic, key, record.Payload)
}

var _ domain.EventPublisher = (*OutboxTopicPublisher)(nil)
