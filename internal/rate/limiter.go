package rate

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript increments KEYS[1], starts its window on the first hit and
// returns {count, remaining window in ms}.
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// peekScript returns {count, remaining window in ms} without mutating.
var peekScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
return {n, redis.call('PTTL', KEYS[1])}
`)

// Config holds rate limiter tuning parameters.
type Config struct {
	Prefix                string
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// Limiter enforces per-identifier and optional per-IP login budgets.
type Limiter struct {
	redis redis.UniversalClient
	cfg   Config
}

func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "gt"
	}
	return &Limiter{redis: client, cfg: cfg}
}

func (l *Limiter) keys(identifier, ip string) []string {
	keys := []string{l.cfg.Prefix + ":al:" + identifier}
	if l.cfg.EnableIPThrottle && ip != "" {
		keys = append(keys, l.cfg.Prefix+":ali:"+ip)
	}
	return keys
}

// CheckLogin fails with a [*LimitedError] when the identifier or IP has
// already used its budget.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	for _, key := range l.keys(identifier, ip) {
		n, ttl, err := l.eval(ctx, peekScript, key)
		if err != nil {
			return err
		}
		if n >= int64(l.cfg.MaxLoginAttempts) {
			return &LimitedError{RetryAfter: ttl}
		}
	}
	return nil
}

// IncrementLogin records a failed attempt. The attempt that exceeds the
// budget itself fails with a [*LimitedError].
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	var limited *LimitedError
	for _, key := range l.keys(identifier, ip) {
		n, ttl, err := l.eval(ctx, hitScript, key, l.cfg.LoginCooldownDuration.Milliseconds())
		if err != nil {
			return err
		}
		if n > int64(l.cfg.MaxLoginAttempts) && (limited == nil || ttl > limited.RetryAfter) {
			limited = &LimitedError{RetryAfter: ttl}
		}
	}
	if limited != nil {
		return limited
	}
	return nil
}

// ResetLogin clears the counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, identifier, ip string) error {
	if err := l.redis.Del(ctx, l.keys(identifier, ip)...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// GetLoginAttempts returns the failed attempts recorded for identifier in
// the current window. Unknown identifiers report zero.
func (l *Limiter) GetLoginAttempts(ctx context.Context, identifier string) (int, error) {
	n, _, err := l.eval(ctx, peekScript, l.keys(identifier, "")[0])
	if err != nil {
		return 0, err
	}
	return int(max(n, 0)), nil
}

func (l *Limiter) eval(ctx context.Context, script *redis.Script, key string, args ...any) (int64, time.Duration, error) {
	vals, err := script.Run(ctx, l.redis, []string{key}, args...).Int64Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, nil
		}
		return 0, 0, unavailable(err)
	}
	if len(vals) != 2 {
		return 0, 0, unavailable(errors.New("unexpected script reply"))
	}
	ttl := time.Duration(max(vals[1], 0)) * time.Millisecond
	return vals[0], ttl, nil
}
