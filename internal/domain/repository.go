package domain

import (
	"context"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
//
// Create и Save принимают записи outbox и обязаны сохранять заказ и записи
// в одной атомарной единице: сбой между записью заказа и записью события
// невозможен. Уникальность sellerOrderId и idempotencyKey обеспечивается
// самим хранилищем — гонка двух создателей с одинаковым ключом разрешается
// в пользу ровно одного, проигравший получает ErrOrderAlreadyExists.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе со staged-событиями.
	Create(ctx context.Context, order Order, records []OutboxRecord) error
	// Save применяет обновление заказа (optimistic locking по Version)
	// вместе со staged-событиями.
	Save(ctx context.Context, order Order, records []OutboxRecord) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, orderID string) (Order, error)
	// FindBySellerOrderID возвращает заказ по внешнему id продавца или ErrOrderNotFound.
	FindBySellerOrderID(ctx context.Context, sellerOrderID string) (Order, error)
	// FindByIdempotencyKey возвращает заказ по ключу идемпотентности или ErrOrderNotFound.
	FindByIdempotencyKey(ctx context.Context, key string) (Order, error)
	// FindByDisplayableOrderIDSince возвращает заказы с данным displayable id,
	// принятые не раньше since (для fuzzy-поиска дубликатов).
	FindByDisplayableOrderIDSince(ctx context.Context, displayableOrderID string, since time.Time) ([]Order, error)
}
