package config

import "time"

// RateLimitConfig configures the Redis token bucket guarding member
// mutations.
type RateLimitConfig struct {
	Enabled        bool            // master switch
	Capacity       int             // bucket size (burst)
	RefillTokens   int             // tokens added per RefillInterval
	RefillInterval time.Duration   // refill period
	TTL            time.Duration   // idle buckets expire after this long
	KeyStrategy    string          // "ip", "user", "ip_user" or "ip_user_route"
	Methods        map[string]bool // upper-cased HTTP methods that consume tokens
	Prefix         string          // Redis key namespace
	Debug          bool            // log limiter decisions
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and clamps them to
// usable values.
func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "gym:rl"),
		Methods:        parseMethods(envStr("RATE_LIMIT_METHODS", "POST,PUT,PATCH,DELETE")),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	// RATE_LIMIT_BURST and RATE_LIMIT_REFILL_EVERY are shorthand forms
	// that override the explicit settings above.
	if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	// Clamp to values the Lua script can work with.
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	// A bucket must outlive several refill periods or it resets to full.
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}
