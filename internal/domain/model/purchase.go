package model

import (
	"time"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"   // created before the gateway redirect
	PurchaseStatusCompleted PurchaseStatus = "completed" // verified by the gateway; grants access
	PurchaseStatusFailed    PurchaseStatus = "failed"    // cancelled or rejected; does not block retries
	PurchaseStatusRefunded  PurchaseStatus = "refunded"  // administrative reversal of a completed purchase
)

// PaymentMethodPayHere is the only payment method the engine records today.
const PaymentMethodPayHere = "payhere"

// CanTransition reports whether from -> to is a legal ledger transition.
func CanTransition(from, to PurchaseStatus) bool {
	switch from {
	case PurchaseStatusPending:
		return to == PurchaseStatusCompleted || to == PurchaseStatusFailed
	case PurchaseStatusCompleted:
		return to == PurchaseStatusRefunded
	default:
		return false
	}
}

// IsTerminal is true for statuses that never change again through the normal flow.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusFailed || s == PurchaseStatusRefunded
}

// BlocksNewPurchase is true for statuses covered by the (user, content, season) unique index.
func (s PurchaseStatus) BlocksNewPurchase() bool {
	return s == PurchaseStatusPending || s == PurchaseStatusCompleted
}

// Purchase is one purchase attempt for a movie, a whole series, or one season of a series.
type Purchase struct {
	ID            string // UUID
	UserID        string
	ContentID     string
	SeasonNumber  *int   // nil for movies and whole-series purchases
	OrderID       string // idempotency key shared with the gateway
	Amount        int64  // minor units, frozen at creation
	Currency      string
	Status        PurchaseStatus
	PaymentMethod string
	PurchasedAt   time.Time
	CompletedAt   *time.Time // set only on transition to completed
	UpdatedAt     time.Time
}

// NewPendingPurchase validates and constructs a pending purchase.
func NewPendingPurchase(id, userID, contentID, orderID string, amount int64, currency string, season *int) (*Purchase, error) {
	if id == "" || userID == "" || contentID == "" || orderID == "" || currency == "" || amount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if season != nil && *season <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Purchase{
		ID:            id,
		UserID:        userID,
		ContentID:     contentID,
		SeasonNumber:  CopySeason(season),
		OrderID:       orderID,
		Amount:        amount,
		Currency:      currency,
		Status:        PurchaseStatusPending,
		PaymentMethod: PaymentMethodPayHere,
		PurchasedAt:   now,
		UpdatedAt:     now,
	}, nil
}

// Matches reports whether the purchase belongs to the (user, content, season) tuple.
func (p *Purchase) Matches(userID, contentID string, season *int) bool {
	return p.UserID == userID && p.ContentID == contentID && SameSeason(p.SeasonNumber, season)
}

// SameSeason compares optional season numbers; nil only equals nil.
func SameSeason(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func CopySeason(s *int) *int {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Season is a convenience constructor for optional season numbers.
func Season(n int) *int { return &n }
