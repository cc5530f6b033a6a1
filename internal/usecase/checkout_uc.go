// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/metrics"
)

type CheckoutInput struct {
	ContentID    string
	SeasonNumber *int
	Buyer        adapter.Buyer
}

// CheckoutSession is what the purchase UI needs to redirect the browser to the gateway.
type CheckoutSession struct {
	Purchase *model.Purchase
	Payload  *adapter.SignedPayload
	Resumed  bool // an in-flight pending order was reused
}

// ReturnView is the state shown to the user after the gateway redirect.
type ReturnView struct {
	Outcome  adapter.ReturnOutcome
	OrderID  string
	Purchase *model.Purchase // nil when the return could not be trusted
	Awaiting bool            // success claimed but not yet verified with the gateway
	Message  string
}

type ReconcileOutcome string

const (
	ReconcileCompleted ReconcileOutcome = "completed"
	ReconcileFailed    ReconcileOutcome = "failed"
	ReconcileUnchanged ReconcileOutcome = "unchanged"
)

// CheckoutUseCase drives a purchase across the redirect-based gateway.
type CheckoutUseCase interface {
	// Start returns a signed payload for the caller's purchase of (content, season). It
	// resumes an existing pending order instead of creating a second one.
	Start(ctx context.Context, who model.Principal, in CheckoutInput) (*CheckoutSession, error)
	// HandleReturn finalizes the browser return trip. An untrusted return never mutates the
	// ledger and yields domain.ErrSignatureMismatch with a view to render.
	HandleReturn(ctx context.Context, query url.Values) (*ReturnView, error)
	// HandleNotification applies a verified server-to-server notification and returns the
	// row as it is afterwards.
	HandleNotification(ctx context.Context, form url.Values) (*model.Purchase, error)
	// Reconcile settles one stale pending purchase against the gateway's own record.
	Reconcile(ctx context.Context, p *model.Purchase, abandonAfter time.Duration) (ReconcileOutcome, error)
}

type CheckoutOptions struct {
	ReturnBaseURL string        // e.g. https://zeyera.example/payment/return
	LockTTL       time.Duration // checkout lock lifetime; zero disables locking
	Dev           bool          // logs buyer PII unredacted
}

var _ CheckoutUseCase = (*checkoutUC)(nil)

type checkoutUC struct {
	pricing     PricingUseCase
	ledger      LedgerUseCase
	entitlement EntitlementUseCase
	gateway     adapter.PaymentGateway
	locker      adapter.Locker
	opts        CheckoutOptions
	log         *zerolog.Logger
	now         func() time.Time
}

// NewCheckoutUseCase wires the checkout flow. locker and logger may be nil.
func NewCheckoutUseCase(
	pricing PricingUseCase,
	ledger LedgerUseCase,
	entitlement EntitlementUseCase,
	gateway adapter.PaymentGateway,
	locker adapter.Locker,
	opts CheckoutOptions,
	logger *zerolog.Logger,
) CheckoutUseCase {
	return &checkoutUC{
		pricing:     pricing,
		ledger:      ledger,
		entitlement: entitlement,
		gateway:     gateway,
		locker:      locker,
		opts:        opts,
		log:         logging.OrNop(logger),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (c *checkoutUC) Start(ctx context.Context, who model.Principal, in CheckoutInput) (*CheckoutSession, error) {
	s, err := c.start(ctx, who, in)
	metrics.IncCheckout(checkoutResult(s, err))
	return s, err
}

func (c *checkoutUC) start(ctx context.Context, who model.Principal, in CheckoutInput) (*CheckoutSession, error) {
	if who.IsAnonymous() {
		return nil, domain.ErrUnauthenticated
	}
	if c.gateway == nil || !c.gateway.Configured() {
		return nil, domain.ErrNotConfigured
	}
	if in.ContentID == "" || (in.SeasonNumber != nil && *in.SeasonNumber <= 0) {
		return nil, domain.ErrInvalidArgument
	}
	ctx = logging.WithUserID(ctx, who.UserID)
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "CheckoutUC.Start")()

	quote, err := c.pricing.Quote(ctx, in.ContentID, in.SeasonNumber)
	if err != nil {
		return nil, err
	}
	if quote.Free() {
		return nil, domain.ErrAlreadyEntitled
	}
	entitled, err := c.entitlement.HasAccess(ctx, in.ContentID, who, in.SeasonNumber)
	if err != nil {
		return nil, err
	}
	if entitled {
		return nil, domain.ErrAlreadyEntitled
	}

	unlock := c.lock(ctx, lockKey(who.UserID, in.ContentID, in.SeasonNumber))
	defer unlock()

	p, resumed, err := c.pendingOrCreate(ctx, who.UserID, quote)
	if err != nil {
		return nil, err
	}

	returnURL, cancelURL, err := c.gateway.ReturnURLs(c.opts.ReturnBaseURL, p.OrderID)
	if err != nil {
		return nil, err
	}
	buyer := in.Buyer
	if buyer.Email == "" {
		buyer.Email = who.Email
	}
	if buyer.FirstName == "" && who.Name != "" {
		buyer.FirstName, buyer.LastName, _ = strings.Cut(who.Name, " ")
	}
	// Amount and currency come from the row, frozen when it was created.
	payload, err := c.gateway.BuildPaymentRequest(ctx, adapter.PaymentRequest{
		OrderID:     p.OrderID,
		Description: model.ItemDescription(quote.Content.Title, p.SeasonNumber),
		Amount:      p.Amount,
		Currency:    p.Currency,
		Buyer:       buyer,
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", p.OrderID).Msg("build payment request")
		return nil, err
	}
	log.Info().
		Str("order_id", p.OrderID).
		Bool("resumed", resumed).
		Str("email", logging.Redact(buyer.Email, c.opts.Dev)).
		Msg("checkout started")
	return &CheckoutSession{Purchase: p, Payload: payload, Resumed: resumed}, nil
}

// pendingOrCreate reuses the tuple's pending row, or creates one. A concurrent insert that
// wins the uniqueness constraint is resolved by re-reading its pending row.
func (c *checkoutUC) pendingOrCreate(ctx context.Context, userID string, q *Quote) (*model.Purchase, bool, error) {
	contentID := q.Content.ID
	p, err := c.ledger.FindPending(ctx, userID, contentID, q.SeasonNumber)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	orderID := GenerateOrderID(contentID, userID, q.SeasonNumber)
	p, err = c.ledger.CreatePending(ctx, userID, contentID, orderID, q.Amount, q.SeasonNumber)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, false, err
	}

	p, err = c.ledger.FindPending(ctx, userID, contentID, q.SeasonNumber)
	switch {
	case err == nil:
		return p, true, nil
	case errors.Is(err, domain.ErrNotFound):
		// the conflicting row is completed
		return nil, false, domain.ErrAlreadyEntitled
	default:
		return nil, false, err
	}
}

func (c *checkoutUC) lock(ctx context.Context, key string) func() {
	if c.locker == nil || c.opts.LockTTL <= 0 {
		return func() {}
	}
	token, err := c.locker.TryLock(ctx, key, c.opts.LockTTL)
	if err != nil {
		// the uniqueness constraint still holds without the lock
		logging.With(ctx, c.log).Debug().Err(err).Str("key", key).Msg("checkout lock not acquired")
		return func() {}
	}
	return func() {
		if err := c.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			c.log.Debug().Err(err).Str("key", key).Msg("checkout unlock")
		}
	}
}

func lockKey(userID, contentID string, season *int) string {
	s := "-"
	if season != nil {
		s = strconv.Itoa(*season)
	}
	return "lock:checkout:" + userID + ":" + contentID + ":" + s
}

func checkoutResult(s *CheckoutSession, err error) string {
	switch {
	case err == nil && s.Resumed:
		return "resumed"
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrAlreadyEntitled):
		return "entitled"
	case errors.Is(err, domain.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (c *checkoutUC) HandleReturn(ctx context.Context, query url.Values) (*ReturnView, error) {
	res := c.gateway.ParseReturn(query)
	if res.Outcome == adapter.ReturnError || res.OrderID == "" {
		metrics.IncPaymentReturn(string(adapter.ReturnError))
		logging.With(ctx, c.log).Warn().Str("reason", res.Reason).Msg("untrusted payment return")
		return &ReturnView{
			Outcome: adapter.ReturnError,
			OrderID: res.OrderID,
			Message: "We could not verify this payment return. No charge has been applied to your access; please try again from the content page.",
		}, domain.ErrSignatureMismatch
	}
	ctx = logging.WithOrderID(ctx, res.OrderID)
	log := logging.With(ctx, c.log)

	p, err := c.ledger.GetByOrderID(ctx, res.OrderID)
	if err != nil {
		return nil, err
	}

	switch res.Outcome {
	case adapter.ReturnCancelled:
		if _, _, err := c.ledger.Fail(ctx, res.OrderID); err != nil {
			return nil, err
		}
	case adapter.ReturnSuccess:
		if p.Status == model.PurchaseStatusPending && c.gateway.CanRetrieve() {
			remote, err := c.gateway.RetrievePayment(ctx, res.OrderID)
			if err != nil {
				// the notification or the reconciler settles it later
				log.Warn().Err(err).Msg("retrieve payment on return")
			} else if verified(remote, p) {
				if _, _, err := c.ledger.Complete(ctx, res.OrderID); err != nil {
					return nil, err
				}
			}
		}
	}

	p, err = c.ledger.GetByOrderID(ctx, res.OrderID)
	if err != nil {
		return nil, err
	}
	view := returnView(res.Outcome, p)
	if view.Awaiting {
		metrics.IncPaymentReturn("awaiting")
	} else {
		metrics.IncPaymentReturn(string(res.Outcome))
	}
	return view, nil
}

// returnView derives the page from the stored row, never from the query string.
func returnView(outcome adapter.ReturnOutcome, p *model.Purchase) *ReturnView {
	v := &ReturnView{Outcome: outcome, OrderID: p.OrderID, Purchase: p}
	switch p.Status {
	case model.PurchaseStatusCompleted:
		v.Message = "Payment confirmed. Enjoy watching!"
	case model.PurchaseStatusFailed:
		v.Message = "The payment was cancelled. You can start a new purchase at any time."
	case model.PurchaseStatusRefunded:
		v.Message = "This purchase has been refunded."
	default:
		if outcome == adapter.ReturnSuccess {
			v.Awaiting = true
			v.Message = "We are waiting for the payment provider to confirm your payment. Access will unlock as soon as it does."
		} else {
			v.Message = "Your payment is still being processed."
		}
	}
	return v
}

func (c *checkoutUC) HandleNotification(ctx context.Context, form url.Values) (*model.Purchase, error) {
	p, result, err := c.handleNotification(ctx, form)
	metrics.IncPaymentNotification(result)
	return p, err
}

func (c *checkoutUC) handleNotification(ctx context.Context, form url.Values) (*model.Purchase, string, error) {
	n, err := c.gateway.ParseNotification(form)
	if err != nil {
		logging.With(ctx, c.log).Warn().Err(err).Msg("rejected payment notification")
		if errors.Is(err, domain.ErrSignatureMismatch) {
			return nil, "bad_signature", err
		}
		return nil, "error", err
	}
	ctx = logging.WithOrderID(ctx, n.OrderID)
	log := logging.With(ctx, c.log)

	p, err := c.ledger.GetByOrderID(ctx, n.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "not_found", err
	}
	if err != nil {
		return nil, "error", err
	}
	if n.Amount != p.Amount || !strings.EqualFold(n.Currency, p.Currency) {
		log.Warn().
			Int64("expected", p.Amount).Int64("got", n.Amount).
			Str("currency", n.Currency).
			Msg("notification amount does not match purchase")
		return nil, "mismatch", fmt.Errorf("%w: order %s", domain.ErrAmountMismatch, n.OrderID)
	}

	var applied bool
	result := "noop"
	switch n.StatusCode {
	case adapter.NotificationSuccess:
		_, applied, err = c.ledger.Complete(ctx, n.OrderID)
		result = "completed"
	case adapter.NotificationCancelled, adapter.NotificationFailed:
		_, applied, err = c.ledger.Fail(ctx, n.OrderID)
		result = "failed"
	case adapter.NotificationChargeback:
		_, applied, err = c.ledger.Refund(ctx, n.OrderID)
		result = "refunded"
	}
	if err != nil {
		return nil, "error", err
	}
	if !applied {
		result = "noop"
	}

	p, err = c.ledger.GetByOrderID(ctx, n.OrderID)
	if err != nil {
		return nil, "error", err
	}
	// Failed is terminal, so the row stays failed, but the money was taken and
	// support has to refund it.
	if !applied && n.StatusCode == adapter.NotificationSuccess && p.Status == model.PurchaseStatusFailed {
		log.Warn().
			Str("payment_id", n.PaymentID).
			Int64("amount", n.Amount).
			Str("currency", n.Currency).
			Str("user_id", p.UserID).
			Msg("payment succeeded for a purchase already marked failed; refund required")
		return p, "paid_after_failed", nil
	}
	log.Info().Int("status_code", int(n.StatusCode)).Str("result", result).Msg("payment notification handled")
	return p, result, nil
}

func (c *checkoutUC) Reconcile(ctx context.Context, p *model.Purchase, abandonAfter time.Duration) (ReconcileOutcome, error) {
	if p == nil || p.Status != model.PurchaseStatusPending {
		return ReconcileUnchanged, nil
	}
	if !c.gateway.CanRetrieve() {
		return ReconcileUnchanged, domain.ErrNotConfigured
	}
	ctx = logging.WithOrderID(ctx, p.OrderID)

	remote, err := c.gateway.RetrievePayment(ctx, p.OrderID)
	if err != nil {
		return ReconcileUnchanged, err
	}
	if verified(remote, p) {
		_, applied, err := c.ledger.Complete(ctx, p.OrderID)
		if err != nil || !applied {
			return ReconcileUnchanged, err
		}
		return ReconcileCompleted, nil
	}
	if remote.Status == adapter.RemoteNotFound && abandonAfter > 0 && c.now().Sub(p.PurchasedAt) >= abandonAfter {
		_, applied, err := c.ledger.Fail(ctx, p.OrderID)
		if err != nil || !applied {
			return ReconcileUnchanged, err
		}
		return ReconcileFailed, nil
	}
	return ReconcileUnchanged, nil
}

// verified is the only condition under which a gateway record may complete a purchase.
func verified(remote *adapter.RemotePayment, p *model.Purchase) bool {
	return remote != nil &&
		remote.Status == adapter.RemoteReceived &&
		remote.OrderID == p.OrderID &&
		remote.Amount == p.Amount &&
		strings.EqualFold(remote.Currency, p.Currency)
}
