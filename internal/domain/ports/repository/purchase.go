package repository

import (
	"context"
	"time"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
)

// -----------------------------
// Purchases
// -----------------------------

type PurchaseRepository interface {
	// Insert adds a new row. It returns domain.ErrConflict when the order id is taken or a
	// pending/completed row already exists for the (user, content, season) tuple.
	Insert(ctx context.Context, tx Tx, p *model.Purchase) error
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Purchase, error)
	// FindByTuple returns the row for the tuple with the given status, or domain.ErrNotFound.
	FindByTuple(ctx context.Context, tx Tx, userID, contentID string, season *int, status model.PurchaseStatus) (*model.Purchase, error)
	// TransitionIfStatus moves the row matching orderID from -> to and returns the updated row.
	// It returns (nil, nil) when no row matched, so repeated calls are no-ops.
	TransitionIfStatus(ctx context.Context, tx Tx, orderID string, from, to model.PurchaseStatus, at time.Time) (*model.Purchase, error)
	ListByUser(ctx context.Context, tx Tx, userID string, status model.PurchaseStatus) ([]*model.Purchase, error)
	ListSeasonsByStatus(ctx context.Context, tx Tx, userID, contentID string, status model.PurchaseStatus) ([]int, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Purchase, error)
}
