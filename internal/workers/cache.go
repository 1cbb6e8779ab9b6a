package workers

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/servicehub/internal/lifecycle"
)

// Cache holds discovery pages. A miss is (Page{}, false, nil).
type Cache interface {
	Get(ctx context.Context, f Filter) (Page, bool, error)
	Set(ctx context.Context, f Filter, page Page) error
	Invalidate(ctx context.Context) error
}

const (
	cachePrefix     = "workers:discover"
	generationKey   = cachePrefix + ":gen"
	defaultCacheTTL = 5 * time.Minute
)

// RedisCache stores pages under a key derived from the filter and the
// current generation. Invalidate bumps the generation so stale pages are
// never read again and expire on their own.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(ctx context.Context, f Filter) (string, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", errors.Wrap(err, "read cache generation")
	}
	return fmt.Sprintf("%s:%d:%s", cachePrefix, gen, FilterKey(f)), nil
}

func (c *RedisCache) Get(ctx context.Context, f Filter) (Page, bool, error) {
	key, err := c.key(ctx, f)
	if err != nil {
		return Page{}, false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Page{}, false, nil
	}
	if err != nil {
		return Page{}, false, errors.Wrap(err, "get cached page")
	}
	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return Page{}, false, errors.Wrap(err, "decode cached page")
	}
	return page, true, nil
}

func (c *RedisCache) Set(ctx context.Context, f Filter, page Page) error {
	key, err := c.key(ctx, f)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return errors.Wrap(err, "encode page")
	}
	return errors.Wrap(c.client.Set(ctx, key, raw, c.ttl).Err(), "set cached page")
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return errors.Wrap(c.client.Incr(ctx, generationKey).Err(), "bump cache generation")
}

// OnRatingChanged drops cached pages whenever a profile's rating moves.
func (c *RedisCache) OnRatingChanged(ctx context.Context, profileID string, _ lifecycle.RatingSummary) {
	if err := c.Invalidate(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("profile_id", profileID).Msg("discovery cache invalidation failed")
	}
}

// FilterKey is a stable digest of the normalised filter.
func FilterKey(f Filter) string {
	raw, _ := json.Marshal(f.Normalize())
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}

// NopCache never hits. Used when Redis is not configured.
type NopCache struct{}

func (NopCache) Get(context.Context, Filter) (Page, bool, error) { return Page{}, false, nil }
func (NopCache) Set(context.Context, Filter, Page) error         { return nil }
func (NopCache) Invalidate(context.Context) error                { return nil }
