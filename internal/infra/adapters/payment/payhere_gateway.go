package payment

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/config"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*PayHereGateway)(nil)

const (
	payHereLiveBase    = "https://www.payhere.lk"
	payHereSandboxBase = "https://sandbox.payhere.lk"

	returnTicketSubject = "payment_return"
	returnTicketTTL     = 24 * time.Hour
)

// PayHereGateway implements adapter.PaymentGateway against the PayHere hosted checkout.
// Checkout forms and notifications are signed with the merchant secret; the browser
// return trip carries an HS256 ticket minted by ReturnURLs.
type PayHereGateway struct {
	merchantID     string
	merchantSecret string
	appID          string
	appSecret      string
	ticketKey      []byte
	notifyURL      string
	base           string
	client         *http.Client
	log            *zerolog.Logger
	now            func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayHereGateway never fails; missing merchant credentials make Configured report false.
func NewPayHereGateway(cfg config.PayHereConfig, client *http.Client, logger *zerolog.Logger) *PayHereGateway {
	base := payHereLiveBase
	if cfg.Sandbox {
		base = payHereSandboxBase
	}
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	key := cfg.ReturnSecret
	if key == "" {
		key = cfg.MerchantSecret
	}
	return &PayHereGateway{
		merchantID:     cfg.MerchantID,
		merchantSecret: cfg.MerchantSecret,
		appID:          cfg.AppID,
		appSecret:      cfg.AppSecret,
		ticketKey:      []byte(key),
		notifyURL:      cfg.NotifyURL,
		base:           base,
		client:         client,
		log:            logging.OrNop(logger),
		now:            time.Now,
	}
}

func (g *PayHereGateway) Name() string { return "payhere" }

func (g *PayHereGateway) Configured() bool {
	return g.merchantID != "" && g.merchantSecret != ""
}

func (g *PayHereGateway) CanRetrieve() bool {
	return g.Configured() && g.appID != "" && g.appSecret != ""
}

func (g *PayHereGateway) CheckoutURL() string { return g.base + "/pay/checkout" }

// ---- Return trip ----

type returnClaims struct {
	OrderID string `json:"order_id"`
	Outcome string `json:"outcome"`
	jwt.RegisteredClaims
}

func (g *PayHereGateway) ticket(orderID string, outcome adapter.ReturnOutcome) (string, error) {
	now := g.now()
	claims := returnClaims{
		OrderID: orderID,
		Outcome: string(outcome),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   returnTicketSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(returnTicketTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.ticketKey)
}

func (g *PayHereGateway) ReturnURLs(baseURL, orderID string) (string, string, error) {
	if !g.Configured() {
		return "", "", domain.ErrNotConfigured
	}
	if orderID == "" {
		return "", "", domain.ErrInvalidArgument
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("%w: return base url %q", domain.ErrInvalidArgument, baseURL)
	}
	build := func(outcome adapter.ReturnOutcome) (string, error) {
		rt, err := g.ticket(orderID, outcome)
		if err != nil {
			return "", err
		}
		cp := *u
		q := cp.Query()
		q.Set("order_id", orderID)
		q.Set("rt", rt)
		cp.RawQuery = q.Encode()
		return cp.String(), nil
	}
	returnURL, err := build(adapter.ReturnSuccess)
	if err != nil {
		return "", "", err
	}
	cancelURL, err := build(adapter.ReturnCancelled)
	if err != nil {
		return "", "", err
	}
	return returnURL, cancelURL, nil
}

// ParseReturn trusts only the signed ticket. A bare outcome=success parameter is ignored.
func (g *PayHereGateway) ParseReturn(query url.Values) adapter.ReturnResult {
	fail := func(reason string) adapter.ReturnResult {
		return adapter.ReturnResult{Outcome: adapter.ReturnError, Reason: reason}
	}
	rt := query.Get("rt")
	if rt == "" {
		return fail("missing return ticket")
	}
	var claims returnClaims
	_, err := jwt.ParseWithClaims(rt, &claims, func(t *jwt.Token) (interface{}, error) {
		return g.ticketKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(returnTicketSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return fail("invalid return ticket")
	}
	if claims.OrderID == "" {
		return fail("ticket without order id")
	}
	if qid := query.Get("order_id"); qid != "" && qid != claims.OrderID {
		return fail("order id does not match ticket")
	}
	switch adapter.ReturnOutcome(claims.Outcome) {
	case adapter.ReturnSuccess, adapter.ReturnCancelled:
		return adapter.ReturnResult{Outcome: adapter.ReturnOutcome(claims.Outcome), OrderID: claims.OrderID}
	default:
		return fail("unknown outcome")
	}
}

// ---- Checkout ----

func (g *PayHereGateway) BuildPaymentRequest(ctx context.Context, req adapter.PaymentRequest) (*adapter.SignedPayload, error) {
	if !g.Configured() {
		return nil, domain.ErrNotConfigured
	}
	if req.OrderID == "" || req.Amount <= 0 || req.Currency == "" || req.ReturnURL == "" || req.CancelURL == "" {
		return nil, domain.ErrInvalidArgument
	}
	amount := FormatAmount(req.Amount)
	currency := strings.ToUpper(req.Currency)
	fields := map[string]string{
		"merchant_id": g.merchantID,
		"return_url":  req.ReturnURL,
		"cancel_url":  req.CancelURL,
		"notify_url":  g.notifyURL,
		"order_id":    req.OrderID,
		"items":       req.Description,
		"currency":    currency,
		"amount":      amount,
		"first_name":  req.Buyer.FirstName,
		"last_name":   req.Buyer.LastName,
		"email":       req.Buyer.Email,
		"phone":       req.Buyer.Phone,
		"address":     req.Buyer.Address,
		"city":        req.Buyer.City,
		"country":     req.Buyer.Country,
		"hash":        g.checkoutHash(req.OrderID, amount, currency),
	}
	if g.notifyURL == "" {
		delete(fields, "notify_url")
	}
	return &adapter.SignedPayload{CheckoutURL: g.CheckoutURL(), Fields: fields}, nil
}

func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func (g *PayHereGateway) checkoutHash(orderID, amount, currency string) string {
	return upperMD5(g.merchantID + orderID + amount + currency + upperMD5(g.merchantSecret))
}

func (g *PayHereGateway) notifySig(merchantID, orderID, amount, currency, statusCode string) string {
	return upperMD5(merchantID + orderID + amount + currency + statusCode + upperMD5(g.merchantSecret))
}

// ---- Notification ----

func (g *PayHereGateway) ParseNotification(form url.Values) (*adapter.Notification, error) {
	if !g.Configured() {
		return nil, domain.ErrNotConfigured
	}
	var (
		merchantID = form.Get("merchant_id")
		orderID    = form.Get("order_id")
		rawAmount  = form.Get("payhere_amount")
		currency   = form.Get("payhere_currency")
		rawStatus  = form.Get("status_code")
		sig        = form.Get("md5sig")
	)
	if orderID == "" || rawAmount == "" || currency == "" || rawStatus == "" || sig == "" {
		return nil, fmt.Errorf("%w: incomplete notification", domain.ErrInvalidArgument)
	}
	want := g.notifySig(merchantID, orderID, rawAmount, currency, rawStatus)
	if subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToUpper(sig))) != 1 {
		return nil, domain.ErrSignatureMismatch
	}
	if merchantID != g.merchantID {
		return nil, fmt.Errorf("%w: merchant id", domain.ErrSignatureMismatch)
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}
	status, err := strconv.Atoi(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: status_code %q", domain.ErrInvalidArgument, rawStatus)
	}
	return &adapter.Notification{
		MerchantID: merchantID,
		OrderID:    orderID,
		PaymentID:  form.Get("payment_id"),
		Amount:     amount,
		Currency:   strings.ToUpper(currency),
		StatusCode: adapter.NotificationStatus(status),
		Signature:  sig,
	}, nil
}

// ---- Retrieval API ----

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type searchResponse struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Data   []struct {
		PaymentID json.Number `json:"payment_id"`
		OrderID   string      `json:"order_id"`
		Status    string      `json:"status"`
		Currency  string      `json:"currency"`
		Amount    json.Number `json:"amount"`
	} `json:"data"`
}

var errUnauthorized = errors.New("payhere: unauthorized")

func (g *PayHereGateway) token(ctx context.Context) (tok string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.accessToken != "" && g.now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	start := time.Now()
	defer func() { metrics.ObserveGatewayCall("oauth_token", start, err) }()

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/merchant/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.appID, g.appSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("payhere token http %d", resp.StatusCode)
	}
	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("payhere token response without access_token")
	}
	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	// refresh a little early so an in-flight search never carries an expired token
	g.accessToken = out.AccessToken
	g.tokenExpiry = g.now().Add(ttl - ttl/10)
	return g.accessToken, nil
}

func (g *PayHereGateway) dropToken() {
	g.mu.Lock()
	g.accessToken = ""
	g.mu.Unlock()
}

// RetrievePayment fetches PayHere's own record for orderID. A 401 drops the cached token
// and retries once.
func (g *PayHereGateway) RetrievePayment(ctx context.Context, orderID string) (*adapter.RemotePayment, error) {
	if !g.CanRetrieve() {
		return nil, domain.ErrNotConfigured
	}
	rp, err := g.search(ctx, orderID)
	if errors.Is(err, errUnauthorized) {
		g.dropToken()
		rp, err = g.search(ctx, orderID)
	}
	return rp, err
}

func (g *PayHereGateway) search(ctx context.Context, orderID string) (rp *adapter.RemotePayment, err error) {
	tok, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { metrics.ObserveGatewayCall("payment_search", start, err) }()

	endpoint := g.base + "/merchant/v1/payment/search?" + url.Values{"order_id": {orderID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("payhere search http %d", resp.StatusCode)
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	g.log.Debug().Str("order_id", orderID).Int("status", out.Status).Int("records", len(out.Data)).Msg("payhere payment search")

	if out.Status != 1 || len(out.Data) == 0 {
		return &adapter.RemotePayment{OrderID: orderID, Status: adapter.RemoteNotFound}, nil
	}
	// newest record first; a RECEIVED record wins over earlier attempts
	rec := out.Data[0]
	for _, d := range out.Data {
		if strings.EqualFold(d.Status, string(adapter.RemoteReceived)) {
			rec = d
			break
		}
	}
	amount, err := ParseAmount(rec.Amount.String())
	if err != nil {
		return nil, err
	}
	return &adapter.RemotePayment{
		PaymentID: rec.PaymentID.String(),
		OrderID:   rec.OrderID,
		Status:    remoteStatus(rec.Status),
		Amount:    amount,
		Currency:  strings.ToUpper(rec.Currency),
	}, nil
}

func remoteStatus(s string) adapter.RemoteStatus {
	switch strings.ToUpper(s) {
	case string(adapter.RemoteReceived):
		return adapter.RemoteReceived
	case string(adapter.RemoteRefunded):
		return adapter.RemoteRefunded
	case string(adapter.RemoteChargeback):
		return adapter.RemoteChargeback
	default:
		return adapter.RemoteOther
	}
}

// ---- Amounts ----

// FormatAmount renders minor units the way PayHere signs them: two decimals, no grouping.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ParseAmount converts a decimal string such as "1000", "1000.5" or "1000.00" into minor units.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	bad := fmt.Errorf("%w: amount %q", domain.ErrInvalidArgument, s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, bad
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || len(frac) > 2 || !allDigits(whole) || !allDigits(frac) {
		return 0, bad
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > (math.MaxInt64-99)/100 {
		return 0, bad
	}
	f, _ := strconv.ParseInt(frac, 10, 64)
	return w*100 + f, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
