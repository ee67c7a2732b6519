// Package logctx переносит correlation id запроса через context.Context:
// явное значение контекста вместо глобального изменяемого состояния.
package logctx

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type correlationKey struct{}

// WithCorrelationID возвращает контекст с установленным correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID извлекает correlation id из контекста; пустая строка, если не задан.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// Decorate добавляет к entry поле correlation_id, если оно есть в контексте.
func Decorate(ctx context.Context, entry *log.Entry) *log.Entry {
	if id := CorrelationID(ctx); id != "" {
		return entry.WithField("correlation_id", id)
	}
	return entry
}
