package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
)

var _ adapter.EventPublisher = (*NoopPublisher)(nil)

// NoopPublisher logs events instead of shipping them. Used when no brokers are configured.
type NoopPublisher struct {
	log *zerolog.Logger
}

func NewNoopPublisher(logger *zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{log: logging.OrNop(logger)}
}

func (p *NoopPublisher) Publish(ctx context.Context, ev adapter.PurchaseEvent) error {
	logging.With(ctx, p.log).Debug().Str("event", ev.Type).Str("order_id", ev.OrderID).Msg("purchase event (not shipped)")
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
