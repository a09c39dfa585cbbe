package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const quotaKeyPrefix = "anon_quota:"

// boundedIncr increments KEYS[1] only while it is below ARGV[1] and returns
// the new count, or -1 when the ceiling is already reached. ARGV[2] is a TTL in
// milliseconds, 0 keeps the counter forever.
var boundedIncr = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return -1
end
local n = redis.call('INCR', KEYS[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return n
`)

// QuotaGate limits how many generations an anonymous visitor may run
type QuotaGate struct {
	rdb     redis.Cmdable
	ceiling int64
	ttl     time.Duration
}

// NewQuotaGate creates a gate admitting ceiling requests per visitor token.
// A non-positive ttl keeps counters without expiry.
func NewQuotaGate(rdb redis.Cmdable, ceiling int64, ttl time.Duration) *QuotaGate {
	if ttl < 0 {
		ttl = 0
	}
	return &QuotaGate{rdb: rdb, ceiling: ceiling, ttl: ttl}
}

// Admit counts one generation for token, or fails with ErrQuotaExceeded when
// the ceiling is already reached. Check and increment happen atomically.
func (g *QuotaGate) Admit(ctx context.Context, token string) error {
	n, err := boundedIncr.Run(ctx, g.rdb, []string{quotaKeyPrefix + token}, g.ceiling, g.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to update quota counter: %w", err)
	}
	if n < 0 {
		return ErrQuotaExceeded
	}
	return nil
}

// Used returns how many generations token has consumed
func (g *QuotaGate) Used(ctx context.Context, token string) (int64, error) {
	n, err := g.rdb.Get(ctx, quotaKeyPrefix+token).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota counter: %w", err)
	}
	return n, nil
}

// Ceiling returns the number of generations a visitor is allowed
func (g *QuotaGate) Ceiling() int64 {
	return g.ceiling
}
