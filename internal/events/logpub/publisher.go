// Package logpub publishes events to the structured log. It stands in for a
// broker when none is configured.
package logpub

import (
	"context"
	"log/slog"

	interfaces "github.com/sheikh-saqib/revenue-sharing-ledger/internal/interfaces"
)

type Publisher struct {
	logger *slog.Logger
}

func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, key string, event any) error {
	p.logger.InfoContext(ctx, "event published", "key", key, "event", event)
	return nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
