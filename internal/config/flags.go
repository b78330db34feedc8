package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// minFetchTimeout keeps the remote fetch from being configured into a guaranteed failure.
const minFetchTimeout = 100 * time.Millisecond

// FlagsConfig configures the feature flag resolver and its remote provider.
//
// The endpoint and access key are treated as opaque strings. An unreachable or
// unknown endpoint is not a startup error, it only makes Initialize land in the
// degraded state. Redis endpoints are the exception since they also configure
// the Redis connection and go through RedisConfig.Validate.
type FlagsConfig struct {
	// RemoteEndpoint selects the provider by scheme (http, https, redis, rediss, file).
	// Empty means "defaults only".
	RemoteEndpoint string `envconfig:"REMOTE_ENDPOINT"`
	AccessKey      string `envconfig:"ACCESS_KEY"`

	// DevMode enables verbose resolver diagnostics. It never changes results.
	DevMode  bool   `envconfig:"DEV_MODE" default:"false"`
	Platform string `envconfig:"PLATFORM" default:"android" validate:"required"`

	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"5s"`
	UsageBuffer  int           `envconfig:"USAGE_BUFFER" default:"256" validate:"min=1"`

	// L1 evaluation cache. A capacity of 0 disables it.
	CacheCapacity int           `envconfig:"CACHE_CAPACITY" default:"1024" validate:"min=0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"1m"`

	// Circuit breaker guarding repeated Initialize calls against a dead provider.
	BreakerFailures uint32        `envconfig:"BREAKER_FAILURES" default:"3" validate:"min=1"`
	BreakerCooldown time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`
}

// Validate checks the resolver tuning knobs. The endpoint itself is only checked for whitespace.
func (c *FlagsConfig) Validate() error {
	if strings.TrimSpace(c.RemoteEndpoint) != c.RemoteEndpoint {
		return fmt.Errorf("flags remote endpoint cannot contain surrounding whitespace")
	}

	if c.FetchTimeout < minFetchTimeout {
		return fmt.Errorf("flags fetch timeout must be at least %s, got %s", minFetchTimeout, c.FetchTimeout)
	}

	if c.CacheCapacity > 0 && c.CacheTTL <= 0 {
		return fmt.Errorf("flags cache ttl must be positive when the cache is enabled")
	}

	if c.BreakerCooldown <= 0 {
		return fmt.Errorf("flags breaker cooldown must be positive, got %s", c.BreakerCooldown)
	}

	return nil
}

// Scheme returns the lower-cased endpoint scheme, or "" when the endpoint is empty or unparsable.
func (c *FlagsConfig) Scheme() string {
	if c.RemoteEndpoint == "" {
		return ""
	}
	parsed, err := url.Parse(c.RemoteEndpoint)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

// UsesRedis reports whether flag definitions are read from Redis.
func (c *FlagsConfig) UsesRedis() bool {
	scheme := c.Scheme()
	return scheme == "redis" || scheme == "rediss"
}

// RedactedEndpoint returns the endpoint with any userinfo password masked, safe for logs.
func (c *FlagsConfig) RedactedEndpoint() string {
	if c.RemoteEndpoint == "" {
		return ""
	}
	parsed, err := url.Parse(c.RemoteEndpoint)
	if err != nil {
		return "<unparsable>"
	}
	return parsed.Redacted()
}
