package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/careslot/careslot-api/internal/config"
)

// NewTokenBucket returns the Redis-backed limiter guarding the auth
// endpoints.  The bucket state lives in Redis so every API instance draws
// from the same budget.  With a nil client (Redis down or not configured)
// or a disabled config the middleware is a pass-through: losing the
// limiter must never lose login.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc {
            return func(c echo.Context) error { return next(c) }
        }
    }

    // Refill and take are a single Lua script so concurrent requests on the
    // same key cannot double-spend a token.
    bucket := redis.NewScript(`
        local key = KEYS[1]
        local now_ms = tonumber(ARGV[1])
        local capacity = tonumber(ARGV[2])
        local refill = tonumber(ARGV[3])
        local interval_ms = tonumber(ARGV[4])
        local ttl_s = tonumber(ARGV[5])

        local state = redis.call('HMGET', key, 'tokens', 'refilled_ms')
        local tokens = tonumber(state[1])
        local refilled = tonumber(state[2])
        if tokens == nil or refilled == nil then
            tokens = capacity
            refilled = now_ms
        end

        local intervals = math.floor(math.max(0, now_ms - refilled) / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + intervals * refill)
            refilled = refilled + intervals * interval_ms
        end

        local allowed = 0
        local retry_ms = 0
        if tokens > 0 then
            allowed = 1
            tokens = tokens - 1
        else
            retry_ms = math.max(0, interval_ms - (now_ms - refilled))
        end

        redis.call('HMSET', key, 'tokens', tokens, 'refilled_ms', refilled)
        redis.call('EXPIRE', key, ttl_s)
        return { allowed, tokens, retry_ms }
    `)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            args := []interface{}{
                time.Now().UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL / time.Second),
            }
            vals, err := bucket.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
            if err != nil {
                // fail open
                return next(c)
            }
            arr, ok := vals.([]interface{})
            if !ok || len(arr) != 3 {
                return next(c)
            }
            allowed := asInt64(arr[0]) == 1
            remaining := asInt64(arr[1])
            retryMs := asInt64(arr[2])

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

            if !allowed {
                secs := int(math.Ceil(float64(retryMs) / 1000.0))
                h.Set("Retry-After", strconv.Itoa(secs))
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too many requests",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case int:
        return int64(t)
    case float64:
        return int64(t)
    case string:
        if n, err := strconv.ParseInt(t, 10, 64); err == nil {
            return n
        }
    }
    return 0
}

// rateKey builds the bucket key.  Auth traffic is mostly unauthenticated,
// so the default keys by client IP; "user" and "ip_user" pick up the
// user_id JWTAuth stores when the route runs behind it.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    switch strings.ToLower(cfg.KeyStrategy) {
    case "user":
        return cfg.Prefix + ":user:" + currentUserID(c)
    case "ip_user":
        return cfg.Prefix + ":ip:" + ip + ":user:" + currentUserID(c)
    default:
        return cfg.Prefix + ":ip:" + ip
    }
}

func currentUserID(c echo.Context) string {
    switch t := c.Get("user_id").(type) {
    case uint64:
        return strconv.FormatUint(t, 10)
    case string:
        if t != "" {
            return t
        }
    }
    return "anon"
}
