package redis

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	idempotencyPrefix = "appdraft:idem:"

	// IdempotencyRetention is how long a replayed response stays
	// available after the first execution.
	IdempotencyRetention = 24 * time.Hour
)

// IdempotencyCache stores the serialized response of the first execution
// of a client request so retries replay it byte for byte instead of
// re-executing.
type IdempotencyCache struct {
	client *Client
}

func NewIdempotencyCache(client *Client) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

// Lookup returns the cached response for the key, or found=false.
func (c *IdempotencyCache) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := c.client.rdb.Get(ctx, idempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// Remember stores the response under the key for the retention window.
// SetNX keeps the first stored response authoritative if two executions
// ever race past the lock.
func (c *IdempotencyCache) Remember(ctx context.Context, key string, response []byte) error {
	return c.client.rdb.SetNX(ctx, idempotencyPrefix+key, response, IdempotencyRetention).Err()
}
