package adapter

import (
	"context"
	"time"
)

// PurchaseEvent is emitted after a ledger mutation has been committed.
type PurchaseEvent struct {
	Type         string    `json:"type"` // purchase.pending | purchase.completed | purchase.failed | purchase.refunded
	OrderID      string    `json:"order_id"`
	PurchaseID   string    `json:"purchase_id"`
	UserID       string    `json:"user_id"`
	ContentID    string    `json:"content_id"`
	SeasonNumber *int      `json:"season_number,omitempty"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, ev PurchaseEvent) error
	Close() error
}
