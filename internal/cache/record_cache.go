package cache

/*
Файл record_cache.go — сквозной (read-through) кэш записей в Redis для
точечных чтений по первичному ключу. Горячий путь get-by-id не трогает
Postgres при попадании; любая мутация инвалидирует ключ. Отказ Redis
никогда не валит запрос — деградируем до чтения из базы.

Кэшируются только "параноидальные" чтения: записи, запрошенные с
IncludeSoftDeleted, ходят мимо кэша, чтобы мягко удаленная запись не
ожила в горячем пути.
*/

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
	"github.com/xela07ax/erp-backend-prototype/internal/infra"
	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
)

type RecordCache struct {
	next     pipeline.Store
	rdb      *redis.Client
	resource string
	ttl      time.Duration
	metrics  *pipeline.Metrics
	logger   *zap.Logger
}

func NewRecordCache(resource string, next pipeline.Store, rdb *redis.Client, ttl time.Duration, metrics *pipeline.Metrics, logger *zap.Logger) *RecordCache {
	return &RecordCache{
		next:     next,
		rdb:      rdb,
		resource: resource,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger.Named("record-cache").With(zap.String("resource", resource)),
	}
}

// FindAll не кэшируется: списки зависят от фильтров и пагинации.
func (c *RecordCache) FindAll(ctx context.Context, filters []pipeline.FilterExpression, opt pipeline.FindOptions) ([]domain.Record, error) {
	return c.next.FindAll(ctx, filters, opt)
}

func (c *RecordCache) Create(ctx context.Context, values domain.Record) (domain.Record, error) {
	rec, err := c.next.Create(ctx, values)
	if err != nil {
		return nil, err
	}
	c.prime(ctx, rec)
	return rec, nil
}

func (c *RecordCache) FindByPK(ctx context.Context, id string, opt pipeline.FindOptions) (domain.Record, error) {
	if opt.IncludeSoftDeleted {
		return c.next.FindByPK(ctx, id, opt)
	}

	key := infra.RecordCacheKey(c.resource, id)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var rec domain.Record
		if json.Unmarshal(raw, &rec) == nil {
			c.metrics.CacheHits.WithLabelValues(c.resource).Inc()
			return rec, nil
		}
		// Битое значение — чистим и идем в базу.
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("cache read failed, falling back to store", zap.Error(err))
	}

	c.metrics.CacheMisses.WithLabelValues(c.resource).Inc()
	rec, err := c.next.FindByPK(ctx, id, opt)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		c.prime(ctx, rec)
	}
	return rec, nil
}

func (c *RecordCache) Update(ctx context.Context, id string, values domain.Record) (domain.Record, error) {
	rec, err := c.next.Update(ctx, id, values)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return rec, nil
}

func (c *RecordCache) Destroy(ctx context.Context, id string, opt pipeline.DestroyOptions) (domain.Record, error) {
	rec, err := c.next.Destroy(ctx, id, opt)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return rec, nil
}

func (c *RecordCache) prime(ctx context.Context, rec domain.Record) {
	id := rec.ID()
	if id == "" {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, infra.RecordCacheKey(c.resource, id), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache prime failed", zap.String("id", id), zap.Error(err))
	}
}

func (c *RecordCache) invalidate(ctx context.Context, id string) {
	if err := c.rdb.Del(ctx, infra.RecordCacheKey(c.resource, id)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
}
