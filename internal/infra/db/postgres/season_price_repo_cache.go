package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/metrics"
	red "github.com/zeyera-studio/zeyera-studio-main/internal/infra/redis"
)

// noOverride marks a cached "no season price" so the common miss does not hit Postgres.
const noOverride = "-"

var _ repository.SeasonPriceRepository = (*seasonPriceRepoCacheDecorator)(nil)

type seasonPriceRepoCacheDecorator struct {
	inner repository.SeasonPriceRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewSeasonPriceRepoCacheDecorator(inner repository.SeasonPriceRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.SeasonPriceRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &seasonPriceRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logging.OrNop(logger),
	}
}

func seasonPriceKey(contentID string, season int) string {
	return fmt.Sprintf("season_price:%s:%d", contentID, season)
}

func (d *seasonPriceRepoCacheDecorator) Get(ctx context.Context, tx repository.Tx, contentID string, season int) (*model.SeasonPrice, error) {
	// reads inside a transaction must see the transaction's writes
	if tx != nil {
		return d.inner.Get(ctx, tx, contentID, season)
	}
	key := seasonPriceKey(contentID, season)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil && val == noOverride:
		metrics.IncCacheRequest("season_price", "hit")
		return nil, domain.ErrNotFound
	case err == nil:
		var sp model.SeasonPrice
		if json.Unmarshal([]byte(val), &sp) == nil {
			metrics.IncCacheRequest("season_price", "hit")
			return &sp, nil
		}
	case !red.IsNil(err):
		metrics.IncCacheRequest("season_price", "error")
		d.log.Warn().Err(err).Str("key", key).Msg("season price cache read")
	}

	metrics.IncCacheRequest("season_price", "miss")
	sp, err := d.inner.Get(ctx, tx, contentID, season)
	if errors.Is(err, domain.ErrNotFound) {
		_ = d.cache.Set(ctx, key, noOverride, d.ttl)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(sp); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return sp, nil
}

// Write operations invalidate after the inner write succeeds. Inside a
// transaction the delete waits for the commit so a concurrent reader cannot
// re-cache the pre-commit row.
func (d *seasonPriceRepoCacheDecorator) Upsert(ctx context.Context, tx repository.Tx, sp *model.SeasonPrice) error {
	if err := d.inner.Upsert(ctx, tx, sp); err != nil {
		return err
	}
	d.invalidateAfter(ctx, tx, seasonPriceKey(sp.ContentID, sp.SeasonNumber))
	return nil
}

func (d *seasonPriceRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, contentID string, season int) error {
	if err := d.inner.Delete(ctx, tx, contentID, season); err != nil {
		return err
	}
	d.invalidateAfter(ctx, tx, seasonPriceKey(contentID, season))
	return nil
}

// ListByContent backs the admin screen and is not cached.
func (d *seasonPriceRepoCacheDecorator) ListByContent(ctx context.Context, tx repository.Tx, contentID string) ([]*model.SeasonPrice, error) {
	return d.inner.ListByContent(ctx, tx, contentID)
}

func (d *seasonPriceRepoCacheDecorator) invalidateAfter(ctx context.Context, tx repository.Tx, key string) {
	if tx == nil {
		d.invalidate(ctx, key)
		return
	}
	repository.AfterCommit(ctx, func(ctx context.Context) { d.invalidate(ctx, key) })
}

func (d *seasonPriceRepoCacheDecorator) invalidate(ctx context.Context, key string) {
	if err := d.cache.Del(ctx, key); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("season price cache invalidation")
	}
}
