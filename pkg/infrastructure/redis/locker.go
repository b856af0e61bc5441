package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Client wraps the shared redis connection used for locks and the
// idempotency replay cache.
type Client struct {
	rdb *redis.Client
}

func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error { return c.rdb.Close() }

const lockPrefix = "appdraft:lock:project:"

// releaseScript deletes the lock only when the stored holder token matches,
// so an expired lease reacquired by someone else is never released by the
// original holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker hands out per-project TTL leases. Acquire is fail-fast: a held
// lock yields ok=false, never blocking.
type Locker struct {
	client *Client
}

func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

// Acquire attempts to take the project lock. On success it returns an
// opaque holder token that must be passed back to Release.
func (l *Locker) Acquire(ctx context.Context, projectID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.rdb.SetNX(ctx, lockPrefix+projectID, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, projectID string, token string) error {
	return releaseScript.Run(ctx, l.client.rdb, []string{lockPrefix + projectID}, token).Err()
}
