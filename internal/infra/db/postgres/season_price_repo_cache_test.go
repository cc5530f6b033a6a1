//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
)

func TestSeasonPriceRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	sp := &model.SeasonPrice{ContentID: "series-1", SeasonNumber: 2, Price: 300}
	spJSON, _ := json.Marshal(sp)

	t.Run("Get should return from cache on hit", func(t *testing.T) {
		// Arrange
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if key != "season_price:series-1:2" {
					t.Errorf("unexpected cache key %q", key)
				}
				return string(spJSON), nil
			},
		}
		inner := &mockInnerSeasonPriceRepo{}
		decorator := NewSeasonPriceRepoCacheDecorator(inner, mockRedis, time.Minute, nil)

		// Act
		result, err := decorator.Get(ctx, nil, "series-1", 2)

		// Assert
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if inner.getCalls != 0 {
			t.Error("inner repository should not be called on a cache hit")
		}
		if result == nil || result.Price != 300 {
			t.Errorf("did not return the cached season price, got %+v", result)
		}
	})

	t.Run("Get should fill the cache on miss", func(t *testing.T) {
		var stored interface{}
		var storedTTL time.Duration
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				stored, storedTTL = value, expiration
				return nil
			},
		}
		inner := &mockInnerSeasonPriceRepo{
			GetFunc: func(ctx context.Context, tx repository.Tx, contentID string, season int) (*model.SeasonPrice, error) {
				return sp, nil
			},
		}
		decorator := NewSeasonPriceRepoCacheDecorator(inner, mockRedis, time.Minute, nil)

		result, err := decorator.Get(ctx, nil, "series-1", 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Price != 300 || inner.getCalls != 1 {
			t.Errorf("expected one inner read returning 300, got %d calls and %+v", inner.getCalls, result)
		}
		if stored == nil || storedTTL != time.Minute {
			t.Errorf("expected the value to be cached for a minute, got %v for %s", stored, storedTTL)
		}
	})

	t.Run("Get should cache the absence of an override", func(t *testing.T) {
		cache := map[string]interface{}{}
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if v, ok := cache[key]; ok {
					return v.(string), nil
				}
				return "", redisNil
			},
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				cache[key] = value
				return nil
			},
		}
		inner := &mockInnerSeasonPriceRepo{
			GetFunc: func(ctx context.Context, tx repository.Tx, contentID string, season int) (*model.SeasonPrice, error) {
				return nil, domain.ErrNotFound
			},
		}
		decorator := NewSeasonPriceRepoCacheDecorator(inner, mockRedis, time.Minute, nil)

		for i := 0; i < 3; i++ {
			if _, err := decorator.Get(ctx, nil, "series-1", 5); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
			}
		}
		if inner.getCalls != 1 {
			t.Errorf("expected the missing override to be read once, got %d", inner.getCalls)
		}
	})

	t.Run("Get should bypass the cache inside a transaction", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				t.Error("cache must not be read inside a transaction")
				return string(spJSON), nil
			},
		}
		inner := &mockInnerSeasonPriceRepo{
			GetFunc: func(ctx context.Context, tx repository.Tx, contentID string, season int) (*model.SeasonPrice, error) {
				return &model.SeasonPrice{ContentID: contentID, SeasonNumber: season, Price: 450}, nil
			},
		}
		decorator := NewSeasonPriceRepoCacheDecorator(inner, mockRedis, time.Minute, nil)

		result, err := decorator.Get(ctx, "tx", "series-1", 2)
		if err != nil || result.Price != 450 {
			t.Fatalf("expected the in-transaction price 450, got %+v, %v", result, err)
		}
	})

	t.Run("Get should fall through when the cache errors", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				return "", errors.New("connection refused")
			},
		}
		inner := &mockInnerSeasonPriceRepo{
			GetFunc: func(ctx context.Context, tx repository.Tx, contentID string, season int) (*model.SeasonPrice, error) {
				return sp, nil
			},
		}
		decorator := NewSeasonPriceRepoCacheDecorator(inner, mockRedis, time.Minute, nil)

		result, err := decorator.Get(ctx, nil, "series-1", 2)
		if err != nil || result.Price != 300 {
			t.Fatalf("expected fallback to the database, got %+v, %v", result, err)
		}
	})

	t.Run("Upsert should invalidate the cache", func(t *testing.T) {
		var deletedKeys []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deletedKeys = append(deletedKeys, keys...)
				return nil
			},
		}
		inner := &mockInnerSeasonPriceRepo{
			UpsertFunc: func(ctx context.Context, tx repository.Tx, sp *model.SeasonPrice) error { return nil },
		}
		decorator := NewSeasonPriceRepoCacheDecorator(inner, mockRedis, time.Minute, nil)

		if err := decorator.Upsert(ctx, nil, sp); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deletedKeys) != 1 || deletedKeys[0] != "season_price:series-1:2" {
			t.Errorf("expected the season key to be deleted, got %v", deletedKeys)
		}
	})

	t.Run("Delete should not invalidate when the inner delete fails", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				t.Error("cache must not be touched after a failed write")
				return nil
			},
		}
		inner := &mockInnerSeasonPriceRepo{
			DeleteFunc: func(ctx context.Context, tx repository.Tx, contentID string, season int) error {
				return domain.ErrNotFound
			},
		}
		decorator := NewSeasonPriceRepoCacheDecorator(inner, mockRedis, time.Minute, nil)

		if err := decorator.Delete(ctx, nil, "series-1", 9); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Upsert inside a transaction should invalidate only after commit", func(t *testing.T) {
		var events []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				events = append(events, "del:"+keys[0])
				return nil
			},
		}
		inner := &mockInnerSeasonPriceRepo{
			UpsertFunc: func(ctx context.Context, tx repository.Tx, sp *model.SeasonPrice) error {
				events = append(events, "upsert")
				return nil
			},
		}
		decorator := NewSeasonPriceRepoCacheDecorator(inner, mockRedis, time.Minute, nil)
		txm := recordingTxManager{events: &events}

		err := txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			return decorator.Upsert(ctx, tx, sp)
		})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := []string{"upsert", "commit", "del:season_price:series-1:2"}
		if strings.Join(events, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, events)
		}
	})

	t.Run("Delete inside a rolled back transaction should keep the cache", func(t *testing.T) {
		var events []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				events = append(events, "del:"+keys[0])
				return nil
			},
		}
		inner := &mockInnerSeasonPriceRepo{
			DeleteFunc: func(ctx context.Context, tx repository.Tx, contentID string, season int) error { return nil },
		}
		decorator := NewSeasonPriceRepoCacheDecorator(inner, mockRedis, time.Minute, nil)
		txm := recordingTxManager{events: &events}
		boom := errors.New("later statement failed")

		err := txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := decorator.Delete(ctx, tx, "series-1", 2); err != nil {
				return err
			}
			return boom
		})

		if !errors.Is(err, boom) {
			t.Fatalf("expected the callback error, got %v", err)
		}
		if len(events) != 1 || events[0] != "rollback" {
			t.Errorf("cache must not be touched on rollback, got %v", events)
		}
	})
}
