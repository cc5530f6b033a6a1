// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/metrics"
)

// EntitlementUseCase is the read path deciding whether a caller may consume content.
type EntitlementUseCase interface {
	// HasAccess fails closed: any error comes back with false.
	HasAccess(ctx context.Context, contentID string, who model.Principal, season *int) (bool, error)
	// HasPendingPurchase returns the in-flight order id for the tuple, if any.
	HasPendingPurchase(ctx context.Context, userID, contentID string, season *int) (string, bool, error)
}

var _ EntitlementUseCase = (*entitlementUC)(nil)

type entitlementUC struct {
	pricing PricingUseCase
	ledger  LedgerUseCase
	log     *zerolog.Logger
}

func NewEntitlementUseCase(pricing PricingUseCase, ledger LedgerUseCase, logger *zerolog.Logger) EntitlementUseCase {
	return &entitlementUC{pricing: pricing, ledger: ledger, log: logging.OrNop(logger)}
}

// HasAccess short-circuits in this order: admin, free price, anonymous, completed purchase.
// Role and price checks never touch the ledger, so free content stays reachable while the
// ledger is down.
func (e *entitlementUC) HasAccess(ctx context.Context, contentID string, who model.Principal, season *int) (bool, error) {
	if who.IsAdmin() {
		return e.decide(true, "admin"), nil
	}

	price, err := e.pricing.ResolvePrice(ctx, contentID, season)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logging.With(ctx, e.log).Error().Err(err).Str("content_id", contentID).Msg("resolve price for access check")
		}
		return e.decide(false, "error"), err
	}
	if price == 0 {
		return e.decide(true, "free"), nil
	}
	if who.IsAnonymous() {
		return e.decide(false, "anonymous"), nil
	}

	_, err = e.ledger.FindCompleted(ctx, who.UserID, contentID, season)
	switch {
	case err == nil:
		return e.decide(true, "purchased"), nil
	case errors.Is(err, domain.ErrNotFound):
		return e.decide(false, "not_purchased"), nil
	default:
		logging.With(ctx, e.log).Error().Err(err).Str("content_id", contentID).Msg("ledger lookup for access check")
		return e.decide(false, "error"), err
	}
}

func (e *entitlementUC) decide(allowed bool, reason string) bool {
	metrics.IncEntitlementDecision(allowed, reason)
	return allowed
}

func (e *entitlementUC) HasPendingPurchase(ctx context.Context, userID, contentID string, season *int) (string, bool, error) {
	if userID == "" {
		return "", false, nil
	}
	p, err := e.ledger.FindPending(ctx, userID, contentID, season)
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.OrderID, true, nil
}
