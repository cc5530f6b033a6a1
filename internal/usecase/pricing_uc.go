// File: internal/usecase/pricing_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
)

// Quote is a resolved price together with the content it was resolved for.
type Quote struct {
	Content      *model.Content
	SeasonNumber *int
	Amount       int64
	Currency     string
}

// Free reports whether the quote grants access without a purchase.
func (q *Quote) Free() bool { return q.Amount == 0 }

type SeasonPriceInput struct {
	SeasonNumber int   `json:"season_number"`
	Price        int64 `json:"price"`
}

// PricingUseCase resolves effective prices and carries the admin pricing actions.
type PricingUseCase interface {
	// ResolvePrice returns the season override when one exists, otherwise the content default.
	// Zero means free. Unknown content is domain.ErrNotFound, never zero.
	ResolvePrice(ctx context.Context, contentID string, season *int) (int64, error)
	// Quote is ResolvePrice plus the content record and currency.
	Quote(ctx context.Context, contentID string, season *int) (*Quote, error)

	SetContentPrice(ctx context.Context, contentID string, price int64) error
	// SetSeasonPrice upserts the override for (contentID, season).
	SetSeasonPrice(ctx context.Context, contentID string, season int, price int64) (*model.SeasonPrice, error)
	// BulkSetSeasonPrices upserts several overrides in one transaction.
	BulkSetSeasonPrices(ctx context.Context, contentID string, prices []SeasonPriceInput) ([]*model.SeasonPrice, error)
	DeleteSeasonPrice(ctx context.Context, contentID string, season int) error
	// ListSeasonPrices returns overrides ordered by season number.
	ListSeasonPrices(ctx context.Context, contentID string) ([]*model.SeasonPrice, error)
}

var _ PricingUseCase = (*pricingUC)(nil)

type pricingUC struct {
	contents repository.ContentRepository
	seasons  repository.SeasonPriceRepository
	tx       repository.TransactionManager
	currency string
	log      *zerolog.Logger
}

// NewPricingUseCase constructs the resolver. tx and logger may be nil; bulk writes then run
// without a transaction.
func NewPricingUseCase(
	contents repository.ContentRepository,
	seasons repository.SeasonPriceRepository,
	tx repository.TransactionManager,
	currency string,
	logger *zerolog.Logger,
) PricingUseCase {
	return &pricingUC{
		contents: contents,
		seasons:  seasons,
		tx:       tx,
		currency: currency,
		log:      logging.OrNop(logger),
	}
}

func (p *pricingUC) ResolvePrice(ctx context.Context, contentID string, season *int) (int64, error) {
	q, err := p.Quote(ctx, contentID, season)
	if err != nil {
		return 0, err
	}
	return q.Amount, nil
}

func (p *pricingUC) Quote(ctx context.Context, contentID string, season *int) (*Quote, error) {
	if contentID == "" || (season != nil && *season <= 0) {
		return nil, domain.ErrInvalidArgument
	}
	content, err := p.contents.FindByID(ctx, repository.NoTX, contentID)
	if err != nil {
		return nil, err
	}
	if season != nil && content.Type == model.ContentTypeMovie {
		return nil, fmt.Errorf("%w: movies have no seasons", domain.ErrInvalidArgument)
	}

	q := &Quote{
		Content:      content,
		SeasonNumber: model.CopySeason(season),
		Amount:       content.DefaultPrice(),
		Currency:     p.currency,
	}
	if season == nil {
		return q, nil
	}

	sp, err := p.seasons.Get(ctx, repository.NoTX, contentID, *season)
	switch {
	case err == nil:
		q.Amount = sp.Price
	case errors.Is(err, domain.ErrNotFound):
		// no override; series default applies
	default:
		return nil, err
	}
	return q, nil
}

func (p *pricingUC) SetContentPrice(ctx context.Context, contentID string, price int64) error {
	if contentID == "" || price < 0 {
		return domain.ErrInvalidArgument
	}
	if err := p.contents.SetPrice(ctx, repository.NoTX, contentID, price); err != nil {
		return err
	}
	p.log.Info().Str("content_id", contentID).Int64("price", price).Msg("content price updated")
	return nil
}

func (p *pricingUC) SetSeasonPrice(ctx context.Context, contentID string, season int, price int64) (*model.SeasonPrice, error) {
	sp, err := model.NewSeasonPrice(contentID, season, price)
	if err != nil {
		return nil, err
	}
	if _, err := p.contents.FindByID(ctx, repository.NoTX, contentID); err != nil {
		return nil, err
	}
	if err := p.seasons.Upsert(ctx, repository.NoTX, sp); err != nil {
		return nil, err
	}
	p.log.Info().Str("content_id", contentID).Int("season", season).Int64("price", price).Msg("season price upserted")
	return sp, nil
}

func (p *pricingUC) BulkSetSeasonPrices(ctx context.Context, contentID string, prices []SeasonPriceInput) ([]*model.SeasonPrice, error) {
	if len(prices) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	rows := make([]*model.SeasonPrice, 0, len(prices))
	seen := make(map[int]struct{}, len(prices))
	for _, in := range prices {
		sp, err := model.NewSeasonPrice(contentID, in.SeasonNumber, in.Price)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[in.SeasonNumber]; dup {
			return nil, fmt.Errorf("%w: season %d listed twice", domain.ErrInvalidArgument, in.SeasonNumber)
		}
		seen[in.SeasonNumber] = struct{}{}
		rows = append(rows, sp)
	}
	if _, err := p.contents.FindByID(ctx, repository.NoTX, contentID); err != nil {
		return nil, err
	}

	write := func(ctx context.Context, tx repository.Tx) error {
		for _, sp := range rows {
			if err := p.seasons.Upsert(ctx, tx, sp); err != nil {
				return err
			}
		}
		return nil
	}
	var err error
	if p.tx != nil {
		err = p.tx.WithTx(ctx, pgx.TxOptions{}, write)
	} else {
		err = write(ctx, repository.NoTX)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SeasonNumber < rows[j].SeasonNumber })
	p.log.Info().Str("content_id", contentID).Int("count", len(rows)).Msg("season prices upserted")
	return rows, nil
}

func (p *pricingUC) DeleteSeasonPrice(ctx context.Context, contentID string, season int) error {
	if contentID == "" || season <= 0 {
		return domain.ErrInvalidArgument
	}
	if err := p.seasons.Delete(ctx, repository.NoTX, contentID, season); err != nil {
		return err
	}
	p.log.Info().Str("content_id", contentID).Int("season", season).Msg("season price removed")
	return nil
}

func (p *pricingUC) ListSeasonPrices(ctx context.Context, contentID string) ([]*model.SeasonPrice, error) {
	if contentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	list, err := p.seasons.ListByContent(ctx, repository.NoTX, contentID)
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SeasonNumber < list[j].SeasonNumber })
	return list, nil
}
