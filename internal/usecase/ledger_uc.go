// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/metrics"
)

// LedgerUseCase is the authoritative record of purchase attempts.
//
// Complete, Fail and Refund are conditional on the current status. When no row is in the
// source status they return (nil, false, nil): a no-op, not an error. Callers re-read the
// row with GetByOrderID to decide what to show.
type LedgerUseCase interface {
	// CreatePending inserts a pending row. It returns domain.ErrConflict when a pending or
	// completed row already exists for the tuple; the caller should reuse that order.
	CreatePending(ctx context.Context, userID, contentID, orderID string, amount int64, season *int) (*model.Purchase, error)
	Complete(ctx context.Context, orderID string) (*model.Purchase, bool, error)
	Fail(ctx context.Context, orderID string) (*model.Purchase, bool, error)
	// Refund is the administrative completed -> refunded reversal.
	Refund(ctx context.Context, orderID string) (*model.Purchase, bool, error)

	GetByOrderID(ctx context.Context, orderID string) (*model.Purchase, error)
	FindPending(ctx context.Context, userID, contentID string, season *int) (*model.Purchase, error)
	FindCompleted(ctx context.Context, userID, contentID string, season *int) (*model.Purchase, error)
	// ListUserPurchases returns completed purchases, newest first.
	ListUserPurchases(ctx context.Context, userID string) ([]*model.Purchase, error)
	// PurchasedSeasons returns the season numbers of contentID the user has completed purchases for.
	PurchasedSeasons(ctx context.Context, userID, contentID string) ([]int, error)
	// ListStalePending returns pending rows created before olderThan, oldest first.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.Purchase, error)
}

var _ LedgerUseCase = (*ledgerUC)(nil)

type ledgerUC struct {
	purchases repository.PurchaseRepository
	events    adapter.EventPublisher
	currency  string
	log       *zerolog.Logger
	now       func() time.Time
}

// NewLedgerUseCase wires the ledger. events and logger may be nil.
func NewLedgerUseCase(
	purchases repository.PurchaseRepository,
	events adapter.EventPublisher,
	currency string,
	logger *zerolog.Logger,
) LedgerUseCase {
	return &ledgerUC{
		purchases: purchases,
		events:    events,
		currency:  currency,
		log:       logging.OrNop(logger),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (l *ledgerUC) CreatePending(ctx context.Context, userID, contentID, orderID string, amount int64, season *int) (*model.Purchase, error) {
	p, err := model.NewPendingPurchase(uuid.NewString(), userID, contentID, orderID, amount, l.currency, season)
	if err != nil {
		return nil, err
	}
	now := l.now()
	p.PurchasedAt, p.UpdatedAt = now, now

	log := logging.With(logging.WithOrderID(ctx, orderID), l.log)
	if err := l.purchases.Insert(ctx, repository.NoTX, p); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Debug().Str("content_id", contentID).Msg("pending purchase conflicts with an existing row")
		} else {
			log.Error().Err(err).Msg("insert pending purchase")
		}
		return nil, err
	}
	log.Info().Str("content_id", contentID).Int64("amount", amount).Msg("pending purchase created")
	l.applied(ctx, p)
	return p, nil
}

func (l *ledgerUC) Complete(ctx context.Context, orderID string) (*model.Purchase, bool, error) {
	return l.transition(ctx, orderID, model.PurchaseStatusPending, model.PurchaseStatusCompleted)
}

func (l *ledgerUC) Fail(ctx context.Context, orderID string) (*model.Purchase, bool, error) {
	return l.transition(ctx, orderID, model.PurchaseStatusPending, model.PurchaseStatusFailed)
}

func (l *ledgerUC) Refund(ctx context.Context, orderID string) (*model.Purchase, bool, error) {
	return l.transition(ctx, orderID, model.PurchaseStatusCompleted, model.PurchaseStatusRefunded)
}

func (l *ledgerUC) transition(ctx context.Context, orderID string, from, to model.PurchaseStatus) (*model.Purchase, bool, error) {
	if orderID == "" || !model.CanTransition(from, to) {
		return nil, false, domain.ErrInvalidArgument
	}
	log := logging.With(logging.WithOrderID(ctx, orderID), l.log)

	p, err := l.purchases.TransitionIfStatus(ctx, repository.NoTX, orderID, from, to, l.now())
	if err != nil {
		log.Error().Err(err).Str("to", string(to)).Msg("purchase transition")
		return nil, false, err
	}
	if p == nil {
		log.Debug().Str("to", string(to)).Msg("purchase transition was a no-op")
		return nil, false, nil
	}
	log.Info().Str("from", string(from)).Str("to", string(to)).Msg("purchase transitioned")
	l.applied(ctx, p)
	return p, true, nil
}

// applied records metrics and publishes the lifecycle event for a committed mutation.
// A publish failure never undoes the ledger write.
func (l *ledgerUC) applied(ctx context.Context, p *model.Purchase) {
	metrics.IncPurchase(string(p.Status))
	if p.Status == model.PurchaseStatusCompleted {
		metrics.AddPurchaseRevenue(p.Currency, p.Amount)
	}
	if l.events == nil {
		return
	}
	ev := adapter.PurchaseEvent{
		Type:         "purchase." + string(p.Status),
		OrderID:      p.OrderID,
		PurchaseID:   p.ID,
		UserID:       p.UserID,
		ContentID:    p.ContentID,
		SeasonNumber: model.CopySeason(p.SeasonNumber),
		Amount:       p.Amount,
		Currency:     p.Currency,
		OccurredAt:   p.UpdatedAt,
	}
	if err := l.events.Publish(ctx, ev); err != nil {
		l.log.Warn().Err(err).Str("order_id", p.OrderID).Str("type", ev.Type).Msg("publish purchase event")
	}
}

func (l *ledgerUC) GetByOrderID(ctx context.Context, orderID string) (*model.Purchase, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return l.purchases.FindByOrderID(ctx, repository.NoTX, orderID)
}

func (l *ledgerUC) FindPending(ctx context.Context, userID, contentID string, season *int) (*model.Purchase, error) {
	return l.purchases.FindByTuple(ctx, repository.NoTX, userID, contentID, season, model.PurchaseStatusPending)
}

func (l *ledgerUC) FindCompleted(ctx context.Context, userID, contentID string, season *int) (*model.Purchase, error) {
	return l.purchases.FindByTuple(ctx, repository.NoTX, userID, contentID, season, model.PurchaseStatusCompleted)
}

func (l *ledgerUC) ListUserPurchases(ctx context.Context, userID string) ([]*model.Purchase, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return l.purchases.ListByUser(ctx, repository.NoTX, userID, model.PurchaseStatusCompleted)
}

func (l *ledgerUC) PurchasedSeasons(ctx context.Context, userID, contentID string) ([]int, error) {
	if userID == "" || contentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return l.purchases.ListSeasonsByStatus(ctx, repository.NoTX, userID, contentID, model.PurchaseStatusCompleted)
}

func (l *ledgerUC) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	return l.purchases.ListPendingOlderThan(ctx, repository.NoTX, olderThan, limit)
}
