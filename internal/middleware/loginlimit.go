package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dcmshq/dcms-server-go/internal/audit"
	apperrors "github.com/dcmshq/dcms-server-go/internal/errors"
	internalredis "github.com/dcmshq/dcms-server-go/internal/redis"
)

const loginWindow = 60 * time.Second

// Sliding-window counter. This throttles credential guessing per source
// IP; it is not an account lockout and keeps no per-account state.
var loginLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    return 0
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

return 1
`)

type LoginRateLimiter struct {
	client *redis.Client
	limit  int
}

func NewLoginRateLimiter(client *redis.Client, limit int) *LoginRateLimiter {
	return &LoginRateLimiter{client: client, limit: limit}
}

func (l *LoginRateLimiter) allowed(ctx context.Context, ip string) bool {
	now := time.Now().Unix()
	key := internalredis.LoginAttemptKey(ip)

	result, err := loginLimitScript.Run(ctx, l.client, []string{key}, now, int64(loginWindow.Seconds()), l.limit).Int64()
	if err != nil {
		// Fail open: a Redis outage must not take logins down with it.
		log.Warn().Err(err).Msg("login rate limit check failed, allowing request")
		return true
	}
	return result == 1
}

func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			ip = forwarded
		}

		if !l.allowed(r.Context(), ip) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventRateLimitExceed})
			w.Header().Set("Retry-After", "60")
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
