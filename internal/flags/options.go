package flags

import (
	"log/slog"
	"time"

	"github.com/rafaeljc/slipup/internal/cache"
	"github.com/rafaeljc/slipup/internal/config"
	"github.com/rafaeljc/slipup/internal/remote"
)

const (
	DefaultPlatform     = "android"
	DefaultAppVersion   = "1.0.0"
	DefaultFetchTimeout = 5 * time.Second
	DefaultUsageBuffer  = 256
)

// Options configures a Resolver. The zero value is a defaults-only resolver.
type Options struct {
	// RemoteEndpoint selects the provider. Empty means defaults only.
	RemoteEndpoint string
	AccessKey      string

	// DevelopmentMode logs every evaluation. Results are unaffected.
	DevelopmentMode bool

	// UsageCallback receives one event per evaluation, asynchronously.
	// It must not call Destroy inline, see UsageCallback.
	UsageCallback UsageCallback
	UsageBuffer   int

	// Platform and AppVersion are stamped onto every attribute set.
	Platform   string
	AppVersion string

	// FetchTimeout bounds the single fetch made by Initialize.
	FetchTimeout time.Duration

	// Fetcher overrides the provider built from RemoteEndpoint. The resolver closes it on Destroy.
	Fetcher remote.Fetcher

	// Cache memoizes evaluations per snapshot. Optional; closed on Destroy.
	Cache *cache.MemoryCache[Evaluation]

	// Provider tuning, used only when Fetcher is nil.
	Redis           *config.RedisConfig
	BreakerFailures uint32
	BreakerCooldown time.Duration

	Logger *slog.Logger
}

// OptionsFromConfig maps loaded configuration onto resolver options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RemoteEndpoint:  cfg.Flags.RemoteEndpoint,
		AccessKey:       cfg.Flags.AccessKey,
		DevelopmentMode: cfg.Flags.DevMode,
		UsageBuffer:     cfg.Flags.UsageBuffer,
		Platform:        cfg.Flags.Platform,
		AppVersion:      cfg.App.Version,
		FetchTimeout:    cfg.Flags.FetchTimeout,
		Redis:           &cfg.Redis,
		BreakerFailures: cfg.Flags.BreakerFailures,
		BreakerCooldown: cfg.Flags.BreakerCooldown,
	}
}

func (o *Options) applyDefaults() {
	if o.Platform == "" {
		o.Platform = DefaultPlatform
	}
	if o.AppVersion == "" {
		o.AppVersion = DefaultAppVersion
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.UsageBuffer <= 0 {
		o.UsageBuffer = DefaultUsageBuffer
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}
