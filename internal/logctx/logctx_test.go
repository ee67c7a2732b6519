package logctx

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestCorrelationIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := CorrelationID(ctx); got != "" {
		t.Fatalf("expected empty id on bare context, got %q", got)
	}

	ctx = WithCorrelationID(ctx, "order-1")
	if got := CorrelationID(ctx); got != "order-1" {
		t.Fatalf("expected order-1, got %q", got)
	}
}

func TestDecorate(t *testing.T) {
	t.Parallel()

	entry := log.WithField("component", "test")

	decorated := Decorate(WithCorrelationID(context.Background(), "order-1"), entry)
	if decorated.Data["correlation_id"] != "order-1" {
		t.Fatalf("expected correlation_id field, got %v", decorated.Data)
	}

	// Без id в контексте entry остаётся нетронутым.
	if got := Decorate(context.Background(), entry); got != entry {
		t.Fatal("expected original entry when context carries no id")
	}
}
