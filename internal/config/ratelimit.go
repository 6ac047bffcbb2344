package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitConfig tunes the token bucket guarding the /v1/auth endpoints.
// The defaults allow a full page of retries per minute per client, which is
// plenty for humans and hostile to credential stuffing.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int           // bucket size (burst)
    RefillTokens   int           // tokens added per interval
    RefillInterval time.Duration
    TTL            time.Duration // idle bucket expiry in Redis
    KeyStrategy    string        // "ip", "user" or "ip_user"
    Prefix         string        // Redis key prefix
}

// LoadRateLimitConfig reads RATE_LIMIT_* from the environment, clamping
// nonsense values to something workable rather than failing startup.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 30),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 2*time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl:auth"),
    }
    if cfg.Capacity < 1 {
        cfg.Capacity = 1
    }
    if cfg.RefillTokens < 1 {
        cfg.RefillTokens = 1
    }
    if cfg.RefillInterval <= 0 {
        cfg.RefillInterval = time.Second
    }
    // A bucket must outlive a few refill cycles or it resets itself.
    if min := 5 * cfg.RefillInterval; cfg.TTL < min {
        cfg.TTL = min
    }
    return cfg
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch os.Getenv(k) {
    case "1", "true", "TRUE", "True", "yes", "on":
        return true
    case "0", "false", "FALSE", "False", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    if v := os.Getenv(k); v != "" {
        if n, err := strconv.Atoi(v); err == nil {
            return n
        }
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    if v := os.Getenv(k); v != "" {
        if dur, err := time.ParseDuration(v); err == nil {
            return dur
        }
    }
    return d
}
