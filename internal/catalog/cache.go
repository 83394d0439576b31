package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"kart-checkout/internal/model"
	"kart-checkout/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyByID       = "payment_method:id:"
	keyByCode     = "payment_method:code:"
	keyActiveList = "payment_methods:active"
)

// cacheEntry carries APIConfig, which the API encoding hides.
type cacheEntry struct {
	Method    model.PaymentMethod `json:"method"`
	APIConfig map[string]any      `json:"api_config,omitempty"`
}

// CachedRepository is a read-through Redis cache in front of a payment method
// store. Cache failures are logged and the store is consulted.
type CachedRepository struct {
	next   repository.PaymentMethodRepository
	rdb    redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedRepository wraps next with a Redis cache.
func NewCachedRepository(next repository.PaymentMethodRepository, rdb redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *CachedRepository {
	return &CachedRepository{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "catalog-cache").Logger(),
	}
}

var _ repository.PaymentMethodRepository = (*CachedRepository)(nil)

func (c *CachedRepository) GetByID(ctx context.Context, id string) (*model.PaymentMethod, error) {
	return c.getOne(ctx, keyByID+id, func() (*model.PaymentMethod, error) {
		return c.next.GetByID(ctx, id)
	})
}

func (c *CachedRepository) GetByCode(ctx context.Context, code string) (*model.PaymentMethod, error) {
	return c.getOne(ctx, keyByCode+code, func() (*model.PaymentMethod, error) {
		return c.next.GetByCode(ctx, code)
	})
}

func (c *CachedRepository) getOne(ctx context.Context, key string, load func() (*model.PaymentMethod, error)) (*model.PaymentMethod, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var e cacheEntry
		if err := json.Unmarshal(raw, &e); err == nil {
			m := e.Method
			m.APIConfig = e.APIConfig
			return &m, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, using store")
	}

	m, err := load()
	if err != nil || m == nil {
		return m, err
	}
	c.set(ctx, key, cacheEntry{Method: *m, APIConfig: m.APIConfig})
	return m, nil
}

// List caches only the active list; the full list is an operator view.
func (c *CachedRepository) List(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error) {
	if !activeOnly {
		return c.next.List(ctx, false)
	}

	raw, err := c.rdb.Get(ctx, keyActiveList).Bytes()
	if err == nil {
		var entries []cacheEntry
		if err := json.Unmarshal(raw, &entries); err == nil {
			methods := make([]model.PaymentMethod, len(entries))
			for i, e := range entries {
				methods[i] = e.Method
				methods[i].APIConfig = e.APIConfig
			}
			return methods, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn().Err(err).Msg("cache read failed, using store")
	}

	methods, err := c.next.List(ctx, true)
	if err != nil {
		return nil, err
	}
	entries := make([]cacheEntry, len(methods))
	for i, m := range methods {
		entries[i] = cacheEntry{Method: m, APIConfig: m.APIConfig}
	}
	c.set(ctx, keyActiveList, entries)
	return methods, nil
}

// Upsert writes through and drops the affected keys.
func (c *CachedRepository) Upsert(ctx context.Context, m *model.PaymentMethod) error {
	if err := c.next.Upsert(ctx, m); err != nil {
		return err
	}
	c.Invalidate(ctx, m)
	return nil
}

// Invalidate removes the cached entries for m and the active list.
func (c *CachedRepository) Invalidate(ctx context.Context, m *model.PaymentMethod) {
	if err := c.rdb.Del(ctx, keyByID+m.ID, keyByCode+m.Code, keyActiveList).Err(); err != nil {
		c.logger.Warn().Err(err).Str("payment_method_id", m.ID).Msg("failed to invalidate cache")
	}
}

func (c *CachedRepository) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
