// Package remote fetches flag definition sets from a provider. A provider is
// chosen by the endpoint scheme: http(s) for a features API, redis(s) for a
// published set in Redis, file for a local JSON document.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/slipup/internal/cache"
	"github.com/rafaeljc/slipup/internal/config"
)

var (
	// ErrRemoteUnavailable covers transport failures, timeouts and missing data.
	ErrRemoteUnavailable = errors.New("remote provider unavailable")

	// ErrMalformedResponse means the provider answered but the payload is not a definition set.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrNoEndpoint is returned by New when no endpoint is configured.
	ErrNoEndpoint = fmt.Errorf("%w: no remote endpoint configured", ErrRemoteUnavailable)
)

// Fetcher retrieves one definition set per call.
type Fetcher interface {
	// Fetch performs a single attempt. Errors wrap ErrRemoteUnavailable or ErrMalformedResponse.
	Fetch(ctx context.Context) (*DefinitionSet, error)

	// Close releases connections held by the provider.
	Close() error
}

// Options configures New.
type Options struct {
	Endpoint  string
	AccessKey string

	// Circuit breaker for the HTTP provider.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// Redis overrides pool and key settings for redis endpoints. Optional.
	Redis *config.RedisConfig

	Logger *slog.Logger
}

// New builds the provider matching the endpoint scheme. It performs no I/O.
func New(opts Options) (Fetcher, error) {
	if opts.Endpoint == "" {
		return nil, ErrNoEndpoint
	}

	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid endpoint: %w", ErrRemoteUnavailable, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPFetcher(HTTPOptions{
			Endpoint:        opts.Endpoint,
			AccessKey:       opts.AccessKey,
			BreakerFailures: opts.BreakerFailures,
			BreakerCooldown: opts.BreakerCooldown,
			Logger:          opts.Logger,
		})
	case "redis", "rediss":
		return newRedisFromEndpoint(opts)
	case "file":
		return NewFileFetcher(filePath(u))
	default:
		return nil, fmt.Errorf("%w: unsupported endpoint scheme %q", ErrRemoteUnavailable, u.Scheme)
	}
}

func newRedisFromEndpoint(opts Options) (Fetcher, error) {
	cfg := config.RedisConfig{}
	if opts.Redis != nil {
		cfg = *opts.Redis
	}
	if cfg.URL == "" && cfg.Host == "" {
		cfg.URL = opts.Endpoint
	}

	redisOpts, err := cache.RedisOptions(&cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}

	store := cache.NewRedisStore(redis.NewClient(redisOpts), cfg.DefinitionsKey)
	return NewRedisFetcher(store), nil
}

// filePath accepts both file:///abs/path and file://./relative/path.
func filePath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*RedisFetcher)(nil)
	_ Fetcher = (*FileFetcher)(nil)
)
