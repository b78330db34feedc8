package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/sony/gobreaker"

	"github.com/rafaeljc/slipup/internal/observability"
)

const (
	// FeaturesPath is appended to the endpoint, followed by the access key.
	FeaturesPath = "/api/features/"

	userAgent       = "slipup-flags"
	maxPayloadBytes = 4 << 20

	defaultBreakerFailures = 3
	defaultBreakerCooldown = 30 * time.Second
)

// HTTPOptions configures NewHTTPFetcher.
type HTTPOptions struct {
	Endpoint  string
	AccessKey string

	BreakerFailures uint32
	BreakerCooldown time.Duration

	// Transport is the base round tripper under the HTTP cache. Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// HTTPFetcher reads the features document over HTTP.
// Responses are cached and revalidated with ETag/Last-Modified, and repeated
// transport failures open a circuit breaker so explicit retries fail fast.
type HTTPFetcher struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewHTTPFetcher builds the fetcher. It performs no I/O.
func NewHTTPFetcher(opts HTTPOptions) (*HTTPFetcher, error) {
	target, err := featuresURL(opts.Endpoint, opts.AccessKey)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	cachingTransport := httpcache.NewMemoryCacheTransport()
	cachingTransport.Transport = base
	cachingTransport.MarkCachedResponses = true

	failures := opts.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	f := &HTTPFetcher{
		url:    target,
		client: &http.Client{Transport: cachingTransport},
		logger: log,
	}

	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "remote-http",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.RemoteBreakerState.WithLabelValues(name).Set(float64(to))
			f.logger.Warn("remote circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return f, nil
}

// featuresURL joins the endpoint and access key. Without a key the endpoint is used as-is.
func featuresURL(endpoint, accessKey string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: invalid http endpoint %q", ErrRemoteUnavailable, endpoint)
	}
	if accessKey == "" {
		return u.String(), nil
	}
	return strings.TrimRight(u.String(), "/") + FeaturesPath + url.PathEscape(accessKey), nil
}

// URL returns the document location (contains the access key, do not log).
func (f *HTTPFetcher) URL() string {
	return f.url
}

// Fetch performs one GET. Only transport failures count against the breaker.
func (f *HTTPFetcher) Fetch(ctx context.Context) (*DefinitionSet, error) {
	body, err := f.breaker.Execute(func() (interface{}, error) {
		return f.get(ctx)
	})
	if err != nil {
		observability.RemoteFetchTotal.WithLabelValues("http", "unavailable").Inc()
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}

	set, err := Decode(body.([]byte))
	if err != nil {
		observability.RemoteFetchTotal.WithLabelValues("http", "malformed").Inc()
		return nil, err
	}

	observability.RemoteFetchTotal.WithLabelValues("http", "ok").Inc()
	return set, nil
}

func (f *HTTPFetcher) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	if res.Header.Get(httpcache.XFromCache) != "" {
		observability.RemoteHTTPCacheHits.Inc()
		f.logger.Debug("features document served from http cache")
	}

	return io.ReadAll(io.LimitReader(res.Body, maxPayloadBytes))
}

// Close drops idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
