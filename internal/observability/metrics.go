package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (e.g., slipup_...).
const namespace = "slipup"

// lowLatencyBuckets covers the in-process evaluation path. Range: 1ms to 500ms.
var lowLatencyBuckets = []float64{.001, .002, .005, .010, .015, .020, .025, .030, .050, .100, .500}

var (
	// -------------------------------------------------------------------------
	// RESOLVER
	// -------------------------------------------------------------------------

	// ResolverEvaluations counts flag lookups by where the value came from.
	// Metric: slipup_resolver_evaluations_total
	ResolverEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "evaluations_total",
		Help:      "Total flag evaluations by flag key and value source",
	}, []string{"flag", "source"})

	// ResolverInitializations counts Initialize outcomes (ready, degraded).
	ResolverInitializations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "initializations_total",
		Help:      "Total Initialize outcomes",
	}, []string{"outcome"})

	// ResolverFetchDuration measures the single remote fetch made by Initialize.
	// Metric: slipup_resolver_fetch_duration_seconds
	ResolverFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "fetch_duration_seconds",
		Help:      "Time taken by the remote definition fetch",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// ResolverDefinitionsVersion is the version of the active definition set (0 for defaults).
	ResolverDefinitionsVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "definitions_version",
		Help:      "Version of the active definition set",
	})

	ResolverUsageCallbackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "usage_callback_failures_total",
		Help:      "Total usage callback invocations that returned an error or panicked",
	})

	// ResolverUsageDropped tracks usage events discarded because the dispatch buffer was full.
	ResolverUsageDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "usage_events_dropped_total",
		Help:      "Total usage events dropped due to a full dispatch buffer",
	})

	// --- Cache L1 Metrics (Otter) ---

	ResolverCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "l1_cache_hits_total",
		Help:      "Total L1 evaluation cache hits",
	})

	ResolverCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "l1_cache_misses_total",
		Help:      "Total L1 evaluation cache misses",
	})

	ResolverCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "l1_cache_evictions_total",
		Help:      "Total items evicted from the L1 cache",
	})

	// S3-FIFO (Otter) tracks item count, not byte size.
	ResolverCacheUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "l1_cache_items_count",
		Help:      "Current number of items in the L1 cache",
	})

	ResolverCacheDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "l1_cache_dropped_total",
		Help:      "Total sets rejected by the L1 cache",
	})

	// -------------------------------------------------------------------------
	// REMOTE PROVIDERS
	// -------------------------------------------------------------------------

	// RemoteFetchTotal counts provider fetches by provider kind and outcome
	// (ok, unavailable, malformed).
	RemoteFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "remote",
		Name:      "fetches_total",
		Help:      "Total remote definition fetches",
	}, []string{"provider", "outcome"})

	// RemoteHTTPCacheHits counts HTTP fetches served by the conditional cache.
	RemoteHTTPCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "remote",
		Name:      "http_cache_hits_total",
		Help:      "Total HTTP fetches answered from the local HTTP cache",
	})

	// RemoteBreakerState mirrors the circuit breaker (0 closed, 1 half-open, 2 open).
	RemoteBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "remote",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	// -------------------------------------------------------------------------
	// INSPECT API (HTTP)
	// -------------------------------------------------------------------------

	// InspectReqDuration measures the latency of HTTP requests.
	// Metric: slipup_inspect_http_handling_seconds
	InspectReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "inspect",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests in the inspect API",
		Buckets:   lowLatencyBuckets,
	}, []string{"method", "route"})

	// InspectReqTotal counts the total number of HTTP requests.
	InspectReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inspect",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests in the inspect API",
	}, []string{"method", "route", "code"})

	// -------------------------------------------------------------------------
	// REDIS POOL
	// -------------------------------------------------------------------------

	RedisPoolConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_connections",
		Help:      "Redis pool connections by state (total, idle, stale)",
	}, []string{"state"})

	RedisPoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_hits_total",
		Help:      "Total times a free connection was found in the pool",
	})

	RedisPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_misses_total",
		Help:      "Total times a new connection had to be dialed",
	})

	RedisPoolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "pool_timeouts_total",
		Help:      "Total times waiting for a pool connection timed out",
	})
)
