package redis

import (
	"context"
	"errors"
	"strings"
	"time"
)

// fixedWindowScript bumps the counter and starts the window on the first
// hit in a single round trip, so a crash can never leave a counter
// without a TTL.
const fixedWindowScript = `local n = redis.call("INCR", KEYS[1])
if n == 1 then redis.call("PEXPIRE", KEYS[1], ARGV[1]) end
return n`

// releaseScript deletes a key only while it still holds the expected value.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// FixedWindowAllow counts a hit against scope and reports whether it is
// within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.store == nil {
		return false, 0, errNotInitialized
	}
	if window <= 0 {
		return false, 0, errors.New("rate limit window must be positive")
	}
	count, err := c.store.Eval(ctx, fixedWindowScript, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// AcquireLock takes a single-slot lock held by token. It returns false
// while another holder owns key.
func (c *Client) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, errors.New("lock token is required")
	}
	return c.SetNX(ctx, key, token, ttl)
}

// ReleaseLock drops the lock only if token still owns it.
func (c *Client) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	return c.DeleteIfValue(ctx, key, token)
}

// DeleteIfValue removes key only while it still holds value, reporting
// whether this caller did the delete.
func (c *Client) DeleteIfValue(ctx context.Context, key, value string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	deleted, err := c.store.Eval(ctx, releaseScript, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}
