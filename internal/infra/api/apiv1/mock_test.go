//go:build !integration

package apiv1_test

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
)

//
// ---------------- in-memory infra mocks (repos/tx) ----------------
//

type memPurchaseRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Purchase
}

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{rows: map[string]*model.Purchase{}}
}

func clone(p *model.Purchase) *model.Purchase {
	cp := *p
	cp.SeasonNumber = model.CopySeason(p.SeasonNumber)
	return &cp
}

func (m *memPurchaseRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.OrderID]; ok {
		return domain.ErrConflict
	}
	for _, r := range m.rows {
		if r.Status.BlocksNewPurchase() && r.Matches(p.UserID, p.ContentID, p.SeasonNumber) {
			return domain.ErrConflict
		}
	}
	m.rows[p.OrderID] = clone(p)
	return nil
}

func (m *memPurchaseRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(r), nil
}

func (m *memPurchaseRepo) FindByTuple(ctx context.Context, tx repository.Tx, userID, contentID string, season *int, status model.PurchaseStatus) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Status == status && r.Matches(userID, contentID, season) {
			return clone(r), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPurchaseRepo) TransitionIfStatus(ctx context.Context, tx repository.Tx, orderID string, from, to model.PurchaseStatus, at time.Time) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[orderID]
	if !ok || r.Status != from {
		return nil, nil
	}
	r.Status, r.UpdatedAt = to, at
	if to == model.PurchaseStatusCompleted {
		r.CompletedAt = &at
	}
	return clone(r), nil
}

func (m *memPurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, status model.PurchaseStatus) ([]*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Purchase
	for _, r := range m.rows {
		if r.UserID == userID && r.Status == status {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (m *memPurchaseRepo) ListSeasonsByStatus(ctx context.Context, tx repository.Tx, userID, contentID string, status model.PurchaseStatus) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []int{}
	for _, r := range m.rows {
		if r.UserID == userID && r.ContentID == contentID && r.Status == status && r.SeasonNumber != nil {
			out = append(out, *r.SeasonNumber)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (m *memPurchaseRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	return nil, nil
}

func (m *memPurchaseRepo) status(orderID string) model.PurchaseStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[orderID]; ok {
		return r.Status
	}
	return ""
}

type memContentRepo struct {
	mu      sync.Mutex
	content map[string]*model.Content
}

func (m *memContentRepo) FindByID(ctx context.Context, tx repository.Tx, contentID string) (*model.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.content[contentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memContentRepo) SetPrice(ctx context.Context, tx repository.Tx, contentID string, price int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.content[contentID]
	if !ok {
		return domain.ErrNotFound
	}
	c.Price = &price
	return nil
}

type memSeasonPriceRepo struct {
	mu   sync.Mutex
	rows map[string]*model.SeasonPrice
}

func seasonKey(contentID string, n int) string { return contentID + "#" + strconv.Itoa(n) }

func (m *memSeasonPriceRepo) Get(ctx context.Context, tx repository.Tx, contentID string, season int) (*model.SeasonPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.rows[seasonKey(contentID, season)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sp
	return &cp, nil
}

func (m *memSeasonPriceRepo) Upsert(ctx context.Context, tx repository.Tx, sp *model.SeasonPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sp
	m.rows[seasonKey(sp.ContentID, sp.SeasonNumber)] = &cp
	return nil
}

func (m *memSeasonPriceRepo) Delete(ctx context.Context, tx repository.Tx, contentID string, season int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := seasonKey(contentID, season)
	if _, ok := m.rows[k]; !ok {
		return domain.ErrNotFound
	}
	delete(m.rows, k)
	return nil
}

func (m *memSeasonPriceRepo) ListByContent(ctx context.Context, tx repository.Tx, contentID string) ([]*model.SeasonPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SeasonPrice
	for _, sp := range m.rows {
		if sp.ContentID == contentID {
			cp := *sp
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeasonNumber < out[j].SeasonNumber })
	return out, nil
}

type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

type nopEvents struct{}

func (nopEvents) Publish(ctx context.Context, ev adapter.PurchaseEvent) error { return nil }
func (nopEvents) Close() error                                               { return nil }

//
// ---------------- gateway ----------------
//

// fakeGateway signs return tickets as "ok-<outcome>" and notifications with md5sig "good".
type fakeGateway struct {
	mu     sync.Mutex
	remote map[string]*adapter.RemotePayment
}

func (g *fakeGateway) Name() string      { return "fake" }
func (g *fakeGateway) Configured() bool  { return true }
func (g *fakeGateway) CanRetrieve() bool { return true }

func (g *fakeGateway) ReturnURLs(baseURL, orderID string) (string, string, error) {
	q := url.Values{"order_id": {orderID}}
	return baseURL + "?rt=ok-success&" + q.Encode(), baseURL + "?rt=ok-cancelled&" + q.Encode(), nil
}

func (g *fakeGateway) BuildPaymentRequest(ctx context.Context, req adapter.PaymentRequest) (*adapter.SignedPayload, error) {
	return &adapter.SignedPayload{
		CheckoutURL: "https://sandbox.payhere.lk/pay/checkout",
		Fields:      map[string]string{"order_id": req.OrderID, "items": req.Description, "hash": "H"},
	}, nil
}

func (g *fakeGateway) ParseReturn(q url.Values) adapter.ReturnResult {
	outcome, ok := strings.CutPrefix(q.Get("rt"), "ok-")
	if !ok || q.Get("order_id") == "" {
		return adapter.ReturnResult{Outcome: adapter.ReturnError}
	}
	return adapter.ReturnResult{Outcome: adapter.ReturnOutcome(outcome), OrderID: q.Get("order_id")}
}

func (g *fakeGateway) ParseNotification(form url.Values) (*adapter.Notification, error) {
	if form.Get("md5sig") != "good" {
		return nil, domain.ErrSignatureMismatch
	}
	var amount int64
	for _, c := range form.Get("payhere_amount") {
		if c >= '0' && c <= '9' {
			amount = amount*10 + int64(c-'0')
		}
	}
	status := adapter.NotificationFailed
	if form.Get("status_code") == "2" {
		status = adapter.NotificationSuccess
	}
	return &adapter.Notification{
		OrderID:    form.Get("order_id"),
		Amount:     amount,
		Currency:   form.Get("payhere_currency"),
		StatusCode: status,
	}, nil
}

func (g *fakeGateway) RetrievePayment(ctx context.Context, orderID string) (*adapter.RemotePayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rp, ok := g.remote[orderID]; ok {
		return rp, nil
	}
	return &adapter.RemotePayment{OrderID: orderID, Status: adapter.RemoteNotFound}, nil
}

func (g *fakeGateway) receive(orderID string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remote[orderID] = &adapter.RemotePayment{OrderID: orderID, Status: adapter.RemoteReceived, Amount: amount, Currency: "LKR"}
}

type stubLimiter struct{ allow bool }

func (l stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.allow, nil
}
