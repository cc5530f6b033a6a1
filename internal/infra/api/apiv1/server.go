package apiv1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
	red "github.com/zeyera-studio/zeyera-studio-main/internal/infra/redis"
	"github.com/zeyera-studio/zeyera-studio-main/internal/usecase"
)

// Limiter is the fixed-window limiter guarding checkout starts.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type CheckoutLimit struct {
	Limit  int
	Window time.Duration
}

var _ ServerInterface = (*Server)(nil)

type Server struct {
	pricing     usecase.PricingUseCase
	entitlement usecase.EntitlementUseCase
	ledger      usecase.LedgerUseCase
	checkout    usecase.CheckoutUseCase
	limiter     Limiter
	limit       CheckoutLimit
	homeURL     string
	log         *zerolog.Logger
}

// NewServer wires the v1 handlers. limiter may be nil to disable checkout throttling.
func NewServer(
	pricing usecase.PricingUseCase,
	entitlement usecase.EntitlementUseCase,
	ledger usecase.LedgerUseCase,
	checkout usecase.CheckoutUseCase,
	limiter Limiter,
	limit CheckoutLimit,
	homeURL string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		pricing:     pricing,
		entitlement: entitlement,
		ledger:      ledger,
		checkout:    checkout,
		limiter:     limiter,
		limit:       limit,
		homeURL:     homeURL,
		log:         logging.OrNop(logger),
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	l := logging.With(r.Context(), s.log)
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		l.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	}
	writeError(w, status, code, userMessage(err, code))
}

// ---- content ----

func (s *Server) GetContentAccess(w http.ResponseWriter, r *http.Request, contentID string, params SeasonParams) {
	ok, err := s.entitlement.HasAccess(r.Context(), contentID, PrincipalFrom(r.Context()), params.Season)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccessResponse{ContentID: contentID, SeasonNumber: params.Season, HasAccess: ok})
}

func (s *Server) GetContentPrice(w http.ResponseWriter, r *http.Request, contentID string, params SeasonParams) {
	q, err := s.pricing.Quote(r.Context(), contentID, params.Season)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PriceResponse{
		ContentID:    contentID,
		SeasonNumber: q.SeasonNumber,
		Amount:       q.Amount,
		Currency:     q.Currency,
		Free:         q.Free(),
	})
}

func (s *Server) ListPurchasedSeasons(w http.ResponseWriter, r *http.Request, contentID string) {
	who := PrincipalFrom(r.Context())
	seasons, err := s.ledger.PurchasedSeasons(r.Context(), who.UserID, contentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PurchasedSeasonsResponse{ContentID: contentID, Seasons: seasons})
}

// ---- checkout ----

func (s *Server) StartCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	who := PrincipalFrom(ctx)

	if s.limiter != nil && s.limit.Limit > 0 {
		allowed, err := s.limiter.Allow(ctx, red.CheckoutKey(who.UserID), s.limit.Limit, s.limit.Window)
		if err != nil {
			logging.With(ctx, s.log).Warn().Err(err).Msg("checkout rate limiter unavailable")
		} else if !allowed {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many checkout attempts, please wait a moment")
			return
		}
	}

	var req CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}
	sess, err := s.checkout.Start(ctx, who, usecase.CheckoutInput{
		ContentID:    req.ContentID,
		SeasonNumber: req.SeasonNumber,
		Buyer: adapter.Buyer{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
			Address:   req.Address,
			City:      req.City,
			Country:   req.Country,
		},
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if sess.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, CheckoutResponse{
		OrderID:     sess.Purchase.OrderID,
		CheckoutURL: sess.Payload.CheckoutURL,
		Fields:      sess.Payload.Fields,
		Amount:      sess.Purchase.Amount,
		Currency:    sess.Purchase.Currency,
		Resumed:     sess.Resumed,
	})
}

func (s *Server) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	view, err := s.checkout.HandleReturn(r.Context(), r.URL.Query())
	switch {
	case err == nil:
		s.renderReturn(w, http.StatusOK, view)
	case errors.Is(err, domain.ErrSignatureMismatch) && view != nil:
		s.renderReturn(w, http.StatusBadRequest, view)
	case errors.Is(err, domain.ErrNotFound):
		s.renderReturn(w, http.StatusNotFound, &usecase.ReturnView{
			Outcome: adapter.ReturnError,
			Message: "We could not find this order. If you were charged, contact support with your order number.",
		})
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("payment return failed")
		s.renderReturn(w, http.StatusServiceUnavailable, &usecase.ReturnView{
			Outcome: adapter.ReturnError,
			Message: "We could not complete this request right now. Please reload this page in a moment.",
		})
	}
}

// PaymentNotify answers 200 for applied and no-op notifications so the gateway stops retrying.
func (s *Server) PaymentNotify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "invalid form body")
		return
	}
	p, err := s.checkout.HandleNotification(r.Context(), r.PostForm)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NotifyResponse{OrderID: p.OrderID, Status: string(p.Status)})
}

// ---- purchases ----

func (s *Server) ListPurchases(w http.ResponseWriter, r *http.Request) {
	who := PrincipalFrom(r.Context())
	list, err := s.ledger.ListUserPurchases(r.Context(), who.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := PurchaseList{Items: make([]Purchase, 0, len(list))}
	for _, p := range list {
		out.Items = append(out.Items, toPurchase(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GetPurchase(w http.ResponseWriter, r *http.Request, orderID string) {
	who := PrincipalFrom(r.Context())
	p, err := s.ledger.GetByOrderID(r.Context(), orderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if p.UserID != who.UserID && !who.IsAdmin() {
		s.fail(w, r, domain.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, toPurchase(p))
}

// ---- admin ----

func (s *Server) SetContentPrice(w http.ResponseWriter, r *http.Request, contentID string) {
	var req SetPriceRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Price == nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "price is required")
		return
	}
	if err := s.pricing.SetContentPrice(r.Context(), contentID, *req.Price); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ContentPriceResponse{ContentID: contentID, Price: *req.Price})
}

func (s *Server) ListSeasonPrices(w http.ResponseWriter, r *http.Request, contentID string) {
	list, err := s.pricing.ListSeasonPrices(r.Context(), contentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*model.SeasonPrice{}
	}
	writeJSON(w, http.StatusOK, SeasonPriceList{ContentID: contentID, Items: list})
}

func (s *Server) BulkSetSeasonPrices(w http.ResponseWriter, r *http.Request, contentID string) {
	var req BulkSeasonPricesRequest
	if err := decodeJSON(w, r, &req); err != nil || len(req.Prices) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_argument", "prices are required")
		return
	}
	list, err := s.pricing.BulkSetSeasonPrices(r.Context(), contentID, req.Prices)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SeasonPriceList{ContentID: contentID, Items: list})
}

func (s *Server) SetSeasonPrice(w http.ResponseWriter, r *http.Request, contentID string, seasonNumber int) {
	var req SetPriceRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Price == nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "price is required")
		return
	}
	sp, err := s.pricing.SetSeasonPrice(r.Context(), contentID, seasonNumber, *req.Price)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) DeleteSeasonPrice(w http.ResponseWriter, r *http.Request, contentID string, seasonNumber int) {
	if err := s.pricing.DeleteSeasonPrice(r.Context(), contentID, seasonNumber); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) RefundPurchase(w http.ResponseWriter, r *http.Request, orderID string) {
	ctx := logging.WithOrderID(r.Context(), orderID)
	p, applied, err := s.ledger.Refund(ctx, orderID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !applied {
		// already refunded, or not refundable: report the current row
		if p, err = s.ledger.GetByOrderID(ctx, orderID); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	logging.With(ctx, s.log).Info().Bool("applied", applied).Str("admin", PrincipalFrom(ctx).UserID).Msg("refund requested")
	writeJSON(w, http.StatusOK, RefundResponse{Purchase: toPurchase(p), Applied: applied})
}
