//go:build !integration

package postgres

import (
	"context"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v4"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
	red "github.com/zeyera-studio/zeyera-studio-main/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerSeasonPriceRepo mocks the database repository that the season price decorator wraps.
type mockInnerSeasonPriceRepo struct {
	GetFunc           func(ctx context.Context, tx repository.Tx, contentID string, season int) (*model.SeasonPrice, error)
	UpsertFunc        func(ctx context.Context, tx repository.Tx, sp *model.SeasonPrice) error
	DeleteFunc        func(ctx context.Context, tx repository.Tx, contentID string, season int) error
	ListByContentFunc func(ctx context.Context, tx repository.Tx, contentID string) ([]*model.SeasonPrice, error)

	getCalls int
}

func (m *mockInnerSeasonPriceRepo) Get(ctx context.Context, tx repository.Tx, contentID string, season int) (*model.SeasonPrice, error) {
	m.getCalls++
	return m.GetFunc(ctx, tx, contentID, season)
}
func (m *mockInnerSeasonPriceRepo) Upsert(ctx context.Context, tx repository.Tx, sp *model.SeasonPrice) error {
	return m.UpsertFunc(ctx, tx, sp)
}
func (m *mockInnerSeasonPriceRepo) Delete(ctx context.Context, tx repository.Tx, contentID string, season int) error {
	return m.DeleteFunc(ctx, tx, contentID, season)
}
func (m *mockInnerSeasonPriceRepo) ListByContent(ctx context.Context, tx repository.Tx, contentID string) ([]*model.SeasonPrice, error) {
	return m.ListByContentFunc(ctx, tx, contentID)
}

// mockInnerContentRepo mocks the database repository that the content decorator wraps.
type mockInnerContentRepo struct {
	FindByIDFunc func(ctx context.Context, tx repository.Tx, contentID string) (*model.Content, error)
	SetPriceFunc func(ctx context.Context, tx repository.Tx, contentID string, price int64) error

	findCalls int
}

func (m *mockInnerContentRepo) FindByID(ctx context.Context, tx repository.Tx, contentID string) (*model.Content, error) {
	m.findCalls++
	return m.FindByIDFunc(ctx, tx, contentID)
}
func (m *mockInnerContentRepo) SetPrice(ctx context.Context, tx repository.Tx, contentID string, price int64) error {
	return m.SetPriceFunc(ctx, tx, contentID, price)
}

// mockRedisClient mocks our Redis client wrapper. Unset funcs behave like an empty cache.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

var redisNil = goredis.Nil

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", redisNil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error {
	if m.PingFunc == nil {
		return nil
	}
	return m.PingFunc(ctx)
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error {
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

// recordingTxManager appends "commit" to events once fn succeeds and then runs
// the after-commit hooks, mirroring TxManager without a database.
type recordingTxManager struct {
	events *[]string
}

var _ repository.TransactionManager = recordingTxManager{}

func (m recordingTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	txCtx, hooks := repository.WithCommitHooks(ctx)
	if err := fn(txCtx, "tx"); err != nil {
		*m.events = append(*m.events, "rollback")
		return err
	}
	*m.events = append(*m.events, "commit")
	hooks.Run(ctx)
	return nil
}
