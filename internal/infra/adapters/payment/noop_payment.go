package payment

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/config"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is wired when no merchant credentials are configured.
// Every operation fails closed: checkout reports NotConfigured and no return or
// notification can ever be accepted.
type NoopPaymentGateway struct{}

func NewNoopPaymentGateway() *NoopPaymentGateway { return &NoopPaymentGateway{} }

func (NoopPaymentGateway) Name() string      { return "noop" }
func (NoopPaymentGateway) Configured() bool  { return false }
func (NoopPaymentGateway) CanRetrieve() bool { return false }

func (NoopPaymentGateway) ReturnURLs(baseURL, orderID string) (string, string, error) {
	return "", "", domain.ErrNotConfigured
}

func (NoopPaymentGateway) BuildPaymentRequest(ctx context.Context, req adapter.PaymentRequest) (*adapter.SignedPayload, error) {
	return nil, domain.ErrNotConfigured
}

func (NoopPaymentGateway) ParseReturn(query url.Values) adapter.ReturnResult {
	return adapter.ReturnResult{Outcome: adapter.ReturnError, Reason: "payment gateway is not configured"}
}

func (NoopPaymentGateway) ParseNotification(form url.Values) (*adapter.Notification, error) {
	return nil, domain.ErrNotConfigured
}

func (NoopPaymentGateway) RetrievePayment(ctx context.Context, orderID string) (*adapter.RemotePayment, error) {
	return nil, domain.ErrNotConfigured
}

// New picks the PayHere gateway when merchant credentials are present.
func New(cfg config.PayHereConfig, client *http.Client, logger *zerolog.Logger) adapter.PaymentGateway {
	if cfg.MerchantID == "" || cfg.MerchantSecret == "" {
		return NewNoopPaymentGateway()
	}
	return NewPayHereGateway(cfg, client, logger)
}
