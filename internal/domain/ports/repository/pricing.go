package repository

import (
	"context"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
)

// SeasonPriceRepository persists per-season overrides, unique on (content_id, season_number).
type SeasonPriceRepository interface {
	// Get returns domain.ErrNotFound when no override exists.
	Get(ctx context.Context, tx Tx, contentID string, season int) (*model.SeasonPrice, error)
	Upsert(ctx context.Context, tx Tx, sp *model.SeasonPrice) error
	Delete(ctx context.Context, tx Tx, contentID string, season int) error
	ListByContent(ctx context.Context, tx Tx, contentID string) ([]*model.SeasonPrice, error)
}

// ContentRepository is the read view of the external content store plus the price column.
type ContentRepository interface {
	// FindByID returns domain.ErrNotFound for unknown content.
	FindByID(ctx context.Context, tx Tx, contentID string) (*model.Content, error)
	SetPrice(ctx context.Context, tx Tx, contentID string, price int64) error
}
