package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/fluoric/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/fluoric/pkg/errors"
)

// PredictionCache stores predicted property values as exact decimal
// strings under a key prefix.
type PredictionCache struct {
	client *Client
	logger logging.Logger
	prefix string
	ttl    time.Duration
}

type CacheOption func(*PredictionCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *PredictionCache) { c.prefix = prefix }
}

// WithTTL sets the entry lifetime; zero keeps entries until evicted.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *PredictionCache) { c.ttl = ttl }
}

// NewPredictionCache builds a cache over client.
func NewPredictionCache(client *Client, log logging.Logger, opts ...CacheOption) *PredictionCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &PredictionCache{
		client: client,
		logger: log,
		prefix: "fluoric:",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PredictionCache) fullKey(key string) string {
	return c.prefix + key
}

// Lookup returns the cached value for key. A miss is (0, false, nil).
func (c *PredictionCache) Lookup(ctx context.Context, key string) (float64, bool, error) {
	raw, err := c.client.Get(ctx, c.fullKey(key)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.logger.Warn("dropping unreadable cache entry", logging.String("key", c.fullKey(key)), logging.Err(err))
		_ = c.client.Del(ctx, c.fullKey(key)).Err()
		return 0, false, nil
	}
	return v, true, nil
}

// Store writes value under key with the configured TTL. 'g' formatting
// with -1 precision round-trips the float64 exactly.
func (c *PredictionCache) Store(ctx context.Context, key string, value float64) error {
	raw := strconv.FormatFloat(value, 'g', -1, 64)
	if err := c.client.Set(ctx, c.fullKey(key), raw, c.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to set cache")
	}
	return nil
}

// Ping checks connectivity.
func (c *PredictionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// Close closes the underlying client.
func (c *PredictionCache) Close() error {
	return c.client.Close()
}
