package utils

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reasons a code issuance can be throttled.
const (
	LimitCooldown = "cooldown"
	LimitDaily    = "daily_limit"
)

// LimitDecision is the outcome of one issuance reservation.
type LimitDecision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// IssueLimiter throttles verification code issuance per email:
// one code per cooldown window and at most a fixed number per UTC day.
type IssueLimiter interface {
	// Reserve checks both limits and, when allowed, records the issuance.
	Reserve(ctx context.Context, email string, now time.Time) (LimitDecision, error)
	// Cooldown reports how long until email may request another code.
	Cooldown(ctx context.Context, email string, now time.Time) (time.Duration, error)
}

func otpCooldownKey(email string) string {
	return "otp:cooldown:" + email
}

func otpDailyKey(email string, now time.Time) string {
	return "otp:daily:" + email + ":" + now.UTC().Format("20060102")
}

// Checks the daily counter first, then claims the cooldown slot, then counts the issuance.
// Returns {status, pttl}: 0 allowed, 1 cooling down, 2 daily cap reached.
var reserveScript = redis.NewScript(`
local daily = tonumber(redis.call('GET', KEYS[2]) or '0')
if daily >= tonumber(ARGV[3]) then
  return {2, redis.call('PTTL', KEYS[2])}
end
if not redis.call('SET', KEYS[1], '1', 'PX', ARGV[1], 'NX') then
  return {1, redis.call('PTTL', KEYS[1])}
end
redis.call('INCR', KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[2])
return {0, 0}
`)

// RedisIssueLimiter keeps the counters in Redis so every instance shares them.
type RedisIssueLimiter struct {
	rc         *redis.Client
	cooldown   time.Duration
	dailyLimit int
}

// NewRedisIssueLimiter builds a limiter on an existing client.
func NewRedisIssueLimiter(rc *redis.Client, cooldown time.Duration, dailyLimit int) *RedisIssueLimiter {
	return &RedisIssueLimiter{rc: rc, cooldown: cooldown, dailyLimit: dailyLimit}
}

// Reserve implements IssueLimiter. Redis errors are returned so callers fail closed.
func (l *RedisIssueLimiter) Reserve(ctx context.Context, email string, now time.Time) (LimitDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	keys := []string{otpCooldownKey(email), otpDailyKey(email, now)}
	args := []interface{}{
		strconv.FormatInt(l.cooldown.Milliseconds(), 10),
		strconv.FormatInt(UntilNextDay(now).Milliseconds(), 10),
		strconv.Itoa(l.dailyLimit),
	}
	res, err := reserveScript.Run(ctx, l.rc, keys, args...).Int64Slice()
	if err != nil {
		return LimitDecision{}, fmt.Errorf("otp limiter: %w", err)
	}
	if len(res) != 2 {
		return LimitDecision{}, fmt.Errorf("otp limiter: unexpected reply %v", res)
	}
	switch res[0] {
	case 0:
		return LimitDecision{Allowed: true}, nil
	case 1:
		return LimitDecision{Reason: LimitCooldown, RetryAfter: pttl(res[1], l.cooldown)}, nil
	default:
		return LimitDecision{Reason: LimitDaily, RetryAfter: UntilNextDay(now)}, nil
	}
}

// Cooldown implements IssueLimiter.
func (l *RedisIssueLimiter) Cooldown(ctx context.Context, email string, now time.Time) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ttl, err := l.rc.PTTL(ctx, otpCooldownKey(email)).Result()
	if err != nil {
		return 0, fmt.Errorf("otp limiter: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func pttl(ms int64, fallback time.Duration) time.Duration {
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

type memoryQuota struct {
	cooldownUntil time.Time
	day           string
	count         int
}

// MemoryIssueLimiter is the in-process fallback used when Redis is not configured.
type MemoryIssueLimiter struct {
	mu         sync.Mutex
	quotas     map[string]*memoryQuota
	cooldown   time.Duration
	dailyLimit int
}

// NewMemoryIssueLimiter returns an empty in-memory limiter.
func NewMemoryIssueLimiter(cooldown time.Duration, dailyLimit int) *MemoryIssueLimiter {
	return &MemoryIssueLimiter{quotas: map[string]*memoryQuota{}, cooldown: cooldown, dailyLimit: dailyLimit}
}

// Reserve implements IssueLimiter.
func (l *MemoryIssueLimiter) Reserve(_ context.Context, email string, now time.Time) (LimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := now.UTC().Format("20060102")
	q, ok := l.quotas[email]
	if !ok {
		q = &memoryQuota{}
		l.quotas[email] = q
	}
	if q.day != day {
		q.day = day
		q.count = 0
	}
	if q.count >= l.dailyLimit {
		return LimitDecision{Reason: LimitDaily, RetryAfter: UntilNextDay(now)}, nil
	}
	if now.Before(q.cooldownUntil) {
		return LimitDecision{Reason: LimitCooldown, RetryAfter: q.cooldownUntil.Sub(now)}, nil
	}
	q.cooldownUntil = now.Add(l.cooldown)
	q.count++
	return LimitDecision{Allowed: true}, nil
}

// Cooldown implements IssueLimiter.
func (l *MemoryIssueLimiter) Cooldown(_ context.Context, email string, now time.Time) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.quotas[email]
	if !ok || !now.Before(q.cooldownUntil) {
		return 0, nil
	}
	return q.cooldownUntil.Sub(now), nil
}

// Prune drops quotas that no longer constrain anything.
func (l *MemoryIssueLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	day := now.UTC().Format("20060102")
	removed := 0
	for email, q := range l.quotas {
		if q.day != day && !now.Before(q.cooldownUntil) {
			delete(l.quotas, email)
			removed++
		}
	}
	return removed
}
