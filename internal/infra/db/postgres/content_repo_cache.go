package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/logging"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/metrics"
	red "github.com/zeyera-studio/zeyera-studio-main/internal/infra/redis"
)

var _ repository.ContentRepository = (*contentRepoCacheDecorator)(nil)

// contentRepoCacheDecorator caches found content only; unknown ids always reach Postgres.
type contentRepoCacheDecorator struct {
	inner repository.ContentRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewContentRepoCacheDecorator(inner repository.ContentRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ContentRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &contentRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logging.OrNop(logger)}
}

func contentKey(id string) string { return "content:" + id }

func (d *contentRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, contentID string) (*model.Content, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, contentID)
	}
	key := contentKey(contentID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var c model.Content
		if json.Unmarshal([]byte(val), &c) == nil {
			metrics.IncCacheRequest("content", "hit")
			return &c, nil
		}
	} else if !red.IsNil(err) {
		metrics.IncCacheRequest("content", "error")
		d.log.Warn().Err(err).Str("key", key).Msg("content cache read")
	}

	metrics.IncCacheRequest("content", "miss")
	c, err := d.inner.FindByID(ctx, tx, contentID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(c); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return c, nil
}

func (d *contentRepoCacheDecorator) SetPrice(ctx context.Context, tx repository.Tx, contentID string, price int64) error {
	if err := d.inner.SetPrice(ctx, tx, contentID, price); err != nil {
		return err
	}
	invalidate := func(ctx context.Context) {
		if err := d.cache.Del(ctx, contentKey(contentID)); err != nil {
			d.log.Warn().Err(err).Str("content_id", contentID).Msg("content cache invalidation")
		}
	}
	if tx == nil {
		invalidate(ctx)
		return nil
	}
	repository.AfterCommit(ctx, invalidate)
	return nil
}
