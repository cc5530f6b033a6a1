//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/adapter"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func clonePurchase(p *model.Purchase) *model.Purchase {
	cp := *p
	cp.SeasonNumber = model.CopySeason(p.SeasonNumber)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// =============================
// Repositories
// =============================

// ---- memPurchaseRepo ----

// memPurchaseRepo mirrors the Postgres constraints: order_id is unique, and at most one
// pending or completed row exists per (user, content, season).
type memPurchaseRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Purchase // by order id

	InsertErr     error
	FindErr       error
	TransitionErr error
	insertCalls   int
}

var _ repository.PurchaseRepository = (*memPurchaseRepo)(nil)

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{rows: make(map[string]*model.Purchase)}
}

// seed stores p as-is, bypassing the uniqueness checks.
func (m *memPurchaseRepo) seed(p *model.Purchase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.OrderID] = clonePurchase(p)
}

func (m *memPurchaseRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if _, ok := m.rows[p.OrderID]; ok {
		return domain.ErrConflict
	}
	for _, r := range m.rows {
		if r.Status.BlocksNewPurchase() && r.Matches(p.UserID, p.ContentID, p.SeasonNumber) {
			return domain.ErrConflict
		}
	}
	m.rows[p.OrderID] = clonePurchase(p)
	return nil
}

func (m *memPurchaseRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	r, ok := m.rows[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePurchase(r), nil
}

func (m *memPurchaseRepo) FindByTuple(ctx context.Context, tx repository.Tx, userID, contentID string, season *int, status model.PurchaseStatus) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for _, r := range m.rows {
		if r.Status == status && r.Matches(userID, contentID, season) {
			return clonePurchase(r), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPurchaseRepo) TransitionIfStatus(ctx context.Context, tx repository.Tx, orderID string, from, to model.PurchaseStatus, at time.Time) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TransitionErr != nil {
		return nil, m.TransitionErr
	}
	r, ok := m.rows[orderID]
	if !ok || r.Status != from {
		return nil, nil
	}
	r.Status = to
	r.UpdatedAt = at
	if to == model.PurchaseStatusCompleted {
		t := at
		r.CompletedAt = &t
	}
	return clonePurchase(r), nil
}

func (m *memPurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, status model.PurchaseStatus) ([]*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Purchase
	for _, r := range m.rows {
		if r.UserID == userID && r.Status == status {
			out = append(out, clonePurchase(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

func (m *memPurchaseRepo) ListSeasonsByStatus(ctx context.Context, tx repository.Tx, userID, contentID string, status model.PurchaseStatus) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for _, r := range m.rows {
		if r.UserID == userID && r.ContentID == contentID && r.Status == status && r.SeasonNumber != nil {
			out = append(out, *r.SeasonNumber)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (m *memPurchaseRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Purchase
	for _, r := range m.rows {
		if r.Status == model.PurchaseStatusPending && r.PurchasedAt.Before(olderThan) {
			out = append(out, clonePurchase(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.Before(out[j].PurchasedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// countBlocking returns how many pending or completed rows exist for the tuple.
func (m *memPurchaseRepo) countBlocking(userID, contentID string, season *int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.Status.BlocksNewPurchase() && r.Matches(userID, contentID, season) {
			n++
		}
	}
	return n
}

// ---- memContentRepo ----

type memContentRepo struct {
	mu      sync.Mutex
	content map[string]*model.Content
	FindErr error
	finds   int
}

var _ repository.ContentRepository = (*memContentRepo)(nil)

func newMemContentRepo(items ...*model.Content) *memContentRepo {
	m := &memContentRepo{content: make(map[string]*model.Content)}
	for _, c := range items {
		m.content[c.ID] = c
	}
	return m
}

func (m *memContentRepo) FindByID(ctx context.Context, tx repository.Tx, contentID string) (*model.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.FindErr != nil {
		return nil, m.FindErr
	}
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

func movie(id string, price int64) *model.Content {
	return &model.Content{ID: id, Title: "Movie " + id, Type: model.ContentTypeMovie, Price: &price}
}

func series(id string, price int64) *model.Content {
	return &model.Content{ID: id, Title: "Series " + id, Type: model.ContentTypeTVSeries, Price: &price}
}

// ---- memSeasonPriceRepo ----

type seasonKey struct {
	contentID string
	season    int
}

type memSeasonPriceRepo struct {
	mu        sync.Mutex
	rows      map[seasonKey]*model.SeasonPrice
	UpsertErr error
	// failOnSeason makes Upsert fail for that season number only
	failOnSeason int
	txSeen       []repository.Tx
}

var _ repository.SeasonPriceRepository = (*memSeasonPriceRepo)(nil)

func newMemSeasonPriceRepo() *memSeasonPriceRepo {
	return &memSeasonPriceRepo{rows: make(map[seasonKey]*model.SeasonPrice)}
}

func (m *memSeasonPriceRepo) Get(ctx context.Context, tx repository.Tx, contentID string, season int) (*model.SeasonPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.rows[seasonKey{contentID, season}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sp
	return &cp, nil
}

func (m *memSeasonPriceRepo) Upsert(ctx context.Context, tx repository.Tx, sp *model.SeasonPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txSeen = append(m.txSeen, tx)
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	if m.failOnSeason != 0 && sp.SeasonNumber == m.failOnSeason {
		return domain.ErrTransientStore
	}
	cp := *sp
	m.rows[seasonKey{sp.ContentID, sp.SeasonNumber}] = &cp
	return nil
}

func (m *memSeasonPriceRepo) Delete(ctx context.Context, tx repository.Tx, contentID string, season int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := seasonKey{contentID, season}
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
	for k, sp := range m.rows {
		if k.contentID == contentID {
			cp := *sp
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- mockTxManager ----

type mockTxManager struct {
	calls int
}

var _ repository.TransactionManager = (*mockTxManager)(nil)

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	txCtx, hooks := repository.WithCommitHooks(ctx)
	if err := fn(txCtx, "tx"); err != nil {
		return err
	}
	hooks.Run(ctx)
	return nil
}

// =============================
// Adapters
// =============================

// ---- MockPaymentGateway ----

type MockPaymentGateway struct {
	mu sync.Mutex

	NotConfigured bool
	Retrieve      bool

	ParseReturnFunc       func(q url.Values) adapter.ReturnResult
	ParseNotificationFunc func(form url.Values) (*adapter.Notification, error)
	RetrievePaymentFunc   func(ctx context.Context, orderID string) (*adapter.RemotePayment, error)
	BuildErr              error

	Requests      []adapter.PaymentRequest
	RetrieveCalls int
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string      { return "mockpay" }
func (m *MockPaymentGateway) Configured() bool  { return !m.NotConfigured }
func (m *MockPaymentGateway) CanRetrieve() bool { return m.Retrieve }

func (m *MockPaymentGateway) ReturnURLs(baseURL, orderID string) (string, string, error) {
	q := url.Values{"order_id": {orderID}}
	return baseURL + "?outcome=success&" + q.Encode(), baseURL + "?outcome=cancelled&" + q.Encode(), nil
}

func (m *MockPaymentGateway) BuildPaymentRequest(ctx context.Context, req adapter.PaymentRequest) (*adapter.SignedPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.BuildErr != nil {
		return nil, m.BuildErr
	}
	return &adapter.SignedPayload{
		CheckoutURL: "https://pay.example/checkout",
		Fields:      map[string]string{"order_id": req.OrderID, "hash": "signed"},
	}, nil
}

// ParseReturn trusts outcome=success|cancelled unless ParseReturnFunc overrides it.
func (m *MockPaymentGateway) ParseReturn(q url.Values) adapter.ReturnResult {
	if m.ParseReturnFunc != nil {
		return m.ParseReturnFunc(q)
	}
	switch q.Get("outcome") {
	case "success":
		return adapter.ReturnResult{Outcome: adapter.ReturnSuccess, OrderID: q.Get("order_id")}
	case "cancelled":
		return adapter.ReturnResult{Outcome: adapter.ReturnCancelled, OrderID: q.Get("order_id")}
	}
	return adapter.ReturnResult{Outcome: adapter.ReturnError, Reason: "bad ticket"}
}

func (m *MockPaymentGateway) ParseNotification(form url.Values) (*adapter.Notification, error) {
	if m.ParseNotificationFunc != nil {
		return m.ParseNotificationFunc(form)
	}
	return nil, domain.ErrSignatureMismatch
}

func (m *MockPaymentGateway) RetrievePayment(ctx context.Context, orderID string) (*adapter.RemotePayment, error) {
	m.mu.Lock()
	m.RetrieveCalls++
	m.mu.Unlock()
	if m.RetrievePaymentFunc != nil {
		return m.RetrievePaymentFunc(ctx, orderID)
	}
	return &adapter.RemotePayment{OrderID: orderID, Status: adapter.RemoteNotFound}, nil
}

// ---- MockEventPublisher ----

type MockEventPublisher struct {
	mu         sync.Mutex
	Events     []adapter.PurchaseEvent
	PublishErr error
}

var _ adapter.EventPublisher = (*MockEventPublisher)(nil)

func (m *MockEventPublisher) Publish(ctx context.Context, ev adapter.PurchaseEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return m.PublishErr
}

func (m *MockEventPublisher) Close() error { return nil }

func (m *MockEventPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Events))
	for i, ev := range m.Events {
		out[i] = ev.Type
	}
	return out
}

// ---- MockLocker ----

type MockLocker struct {
	mu      sync.Mutex
	held    map[string]string
	LockErr error
	Locks   int
	Unlocks int
}

var _ adapter.Locker = (*MockLocker)(nil)

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LockErr != nil {
		return "", m.LockErr
	}
	if m.held == nil {
		m.held = make(map[string]string)
	}
	if _, ok := m.held[key]; ok {
		return "", domain.ErrConflict
	}
	m.Locks++
	m.held[key] = "tok-" + key
	return m.held[key], nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
		m.Unlocks++
	}
	return nil
}
