package flags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rafaeljc/slipup/internal/cache"
	"github.com/rafaeljc/slipup/internal/observability"
	"github.com/rafaeljc/slipup/internal/remote"
	"github.com/rafaeljc/slipup/internal/ruleengine"
	"github.com/rafaeljc/slipup/internal/targeting"
)

// snapshot is everything a lookup reads. It is never mutated once published.
type snapshot struct {
	state      State
	reason     error
	source     Source
	version    int64
	flags      map[Key]*ruleengine.FeatureFlag
	attrs      targeting.Attributes
	user       ruleengine.Context
	generation uint64
}

// Resolver serves flag values from an atomically swapped snapshot.
// Lookups are lock-free; Initialize, SetTargetingAttributes and Destroy
// serialize on mu and publish a whole new snapshot.
type Resolver struct {
	snap atomic.Pointer[snapshot]
	mu   sync.Mutex

	opts       Options
	instanceID string
	logger     *slog.Logger
	engine     *ruleengine.Engine
	fetcher    remote.Fetcher
	fetcherErr error
	cache      *cache.MemoryCache[Evaluation]
	usage      *dispatcher
	group      singleflight.Group
}

// New prepares a resolver serving the static defaults. It performs no I/O and
// never fails: a bad endpoint surfaces as a Degraded result from Initialize.
func New(opts Options) *Resolver {
	opts.applyDefaults()

	r := &Resolver{
		opts:       opts,
		instanceID: uuid.NewString(),
		cache:      opts.Cache,
	}
	r.logger = opts.Logger.With(
		slog.String("component", "flag_resolver"),
		slog.String("instance_id", r.instanceID),
	)
	r.engine = ruleengine.New(r.logger)

	if opts.Fetcher != nil {
		r.fetcher = opts.Fetcher
	} else {
		r.fetcher, r.fetcherErr = remote.New(remote.Options{
			Endpoint:        opts.RemoteEndpoint,
			AccessKey:       opts.AccessKey,
			BreakerFailures: opts.BreakerFailures,
			BreakerCooldown: opts.BreakerCooldown,
			Redis:           opts.Redis,
			Logger:          r.logger,
		})
	}

	if opts.UsageCallback != nil {
		r.usage = newDispatcher(opts.UsageCallback, opts.UsageBuffer, r.logger)
	}

	attrs := targeting.New("", opts.Platform, opts.AppVersion, nil, nil)
	r.snap.Store(&snapshot{
		state:  StateUninitialized,
		source: SourceDefault,
		flags:  defaultDefinitions(),
		attrs:  attrs,
		user:   attrs.Context(),
	})

	return r
}

// InstanceID identifies this resolver in logs and usage events.
func (r *Resolver) InstanceID() string {
	return r.instanceID
}

// Initialize makes exactly one attempt to fetch remote definitions, bounded
// by the fetch timeout. On success it installs them (Ready); on any failure it
// installs the defaults (Degraded). Either way lookups keep working.
//
// Overlapping calls share the in-flight attempt and its result; the first
// caller's context governs the fetch. The error is non-nil only after Destroy.
func (r *Resolver) Initialize(ctx context.Context) (InitResult, error) {
	if r.State() == StateDestroyed {
		return InitResult{}, ErrDestroyed
	}

	v, err, shared := r.group.Do("initialize", func() (any, error) {
		return r.initialize(ctx)
	})
	if err != nil {
		return InitResult{}, err
	}
	if shared {
		r.logger.Debug("initialize coalesced with in-flight call")
	}
	return v.(InitResult), nil
}

func (r *Resolver) initialize(ctx context.Context) (InitResult, error) {
	if err := r.publish(func(next *snapshot) { next.state = StateLoading }); err != nil {
		return InitResult{}, err
	}

	start := time.Now()
	set, err := r.fetch(ctx)
	elapsed := time.Since(start)

	if err != nil {
		return r.degrade(err, elapsed)
	}

	flags := make(map[Key]*ruleengine.FeatureFlag, len(set.Flags))
	for k, f := range set.Flags {
		flags[Key(k)] = f
	}

	if err := r.publish(func(next *snapshot) {
		next.state = StateReady
		next.reason = nil
		next.source = SourceRemote
		next.version = set.Version
		next.flags = flags
	}); err != nil {
		return InitResult{}, err
	}

	observability.ResolverFetchDuration.WithLabelValues(string(OutcomeReady)).Observe(elapsed.Seconds())
	observability.ResolverInitializations.WithLabelValues(string(OutcomeReady)).Inc()
	observability.ResolverDefinitionsVersion.Set(float64(set.Version))

	r.logger.Info("flag definitions loaded",
		slog.Int64("version", set.Version),
		slog.Int("flags", len(flags)),
		slog.Duration("duration", elapsed),
	)

	return readyResult(set.Version, flags), nil
}

func (r *Resolver) fetch(ctx context.Context) (*remote.DefinitionSet, error) {
	if r.fetcherErr != nil {
		return nil, r.fetcherErr
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
	defer cancel()

	set, err := r.fetcher.Fetch(fetchCtx)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, fmt.Errorf("%w: provider returned no definitions", remote.ErrMalformedResponse)
	}
	return set, nil
}

func (r *Resolver) degrade(reason error, elapsed time.Duration) (InitResult, error) {
	if err := r.publish(func(next *snapshot) {
		next.state = StateDegraded
		next.reason = reason
		next.source = SourceDefault
		next.version = 0
		next.flags = defaultDefinitions()
	}); err != nil {
		return InitResult{}, err
	}

	observability.ResolverFetchDuration.WithLabelValues(string(OutcomeDegraded)).Observe(elapsed.Seconds())
	observability.ResolverInitializations.WithLabelValues(string(OutcomeDegraded)).Inc()
	observability.ResolverDefinitionsVersion.Set(0)

	r.logger.Warn("remote flag definitions unavailable, serving defaults",
		slog.String("error", reason.Error()),
		slog.String("kind", failureKind(reason)),
		slog.Duration("duration", elapsed),
	)

	return degradedResult(reason), nil
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, remote.ErrNoEndpoint):
		return "no_endpoint"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, remote.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "remote_unavailable"
	}
}

// IsFeatureEnabled resolves key to a boolean. Unknown keys are false.
func (r *Resolver) IsFeatureEnabled(key Key) bool {
	snap := r.current()
	ev := r.resolve(snap, key)
	enabled := ruleengine.Truthy(ev.Value)
	r.track(snap, ev, enabled)
	return enabled
}

// Evaluate resolves key and reports where the value came from.
func (r *Resolver) Evaluate(key Key) Evaluation {
	snap := r.current()
	ev := r.resolve(snap, key)
	r.track(snap, ev, ev.Value)
	ev.Value = cloneValue(ev.Value)
	return ev
}

// SetTargetingAttributes replaces the whole attribute set. Nothing from the
// previous set survives. Definitions are not refetched.
func (r *Resolver) SetTargetingAttributes(userID string, device *targeting.DeviceInfo, extra map[string]string) {
	attrs := targeting.New(userID, r.opts.Platform, r.opts.AppVersion, device, extra)
	user := attrs.Context()

	if err := r.publish(func(next *snapshot) {
		next.attrs = attrs
		next.user = user
	}); err != nil {
		panic(err)
	}
}

// Destroy stops usage delivery and releases the provider. It is idempotent.
// Any lookup afterwards panics with ErrDestroyed. It waits for queued usage
// events, so a UsageCallback must not call it inline.
func (r *Resolver) Destroy() {
	r.mu.Lock()
	cur := r.snap.Load()
	if cur.state == StateDestroyed {
		r.mu.Unlock()
		return
	}
	next := *cur
	next.state = StateDestroyed
	next.generation++
	r.snap.Store(&next)
	r.mu.Unlock()

	if r.usage != nil {
		r.usage.stop()
	}
	if r.fetcher != nil {
		if err := r.fetcher.Close(); err != nil {
			r.logger.Warn("failed to close flag provider", slog.String("error", err.Error()))
		}
	}
	if r.cache != nil {
		r.cache.Close()
	}

	r.logger.Info("flag resolver destroyed")
}

// State returns the current lifecycle state. It is safe after Destroy.
func (r *Resolver) State() State {
	return r.snap.Load().state
}

// Snapshot is a read-only copy of the resolver's current view.
type Snapshot struct {
	State       State
	Reason      error
	Source      Source
	Version     int64
	Generation  uint64
	Definitions map[Key]ruleengine.FeatureFlag
	Attributes  targeting.Attributes
}

// Snapshot copies the active definitions and attributes. It is safe after Destroy.
func (r *Resolver) Snapshot() Snapshot {
	snap := r.snap.Load()

	defs := make(map[Key]ruleengine.FeatureFlag, len(snap.flags))
	for k, f := range snap.flags {
		c := *f
		c.Rules = cloneRules(f.Rules)
		c.DefaultValue = cloneValue(f.DefaultValue)
		c.RuleValue = cloneValue(f.RuleValue)
		defs[k] = c
	}

	return Snapshot{
		State:       snap.state,
		Reason:      snap.reason,
		Source:      snap.source,
		Version:     snap.version,
		Generation:  snap.generation,
		Definitions: defs,
		Attributes:  snap.attrs.Clone(),
	}
}

// cloneRules copies rule parameters. Compiled forms stay private to the snapshot.
func cloneRules(rules []ruleengine.Rule) []ruleengine.Rule {
	if rules == nil {
		return nil
	}
	out := make([]ruleengine.Rule, len(rules))
	for i, rule := range rules {
		out[i] = ruleengine.Rule{
			ID:    rule.ID,
			Type:  rule.Type,
			Value: slices.Clone(rule.Value),
		}
	}
	return out
}

// current loads the snapshot for a lookup, failing fast after Destroy.
func (r *Resolver) current() *snapshot {
	snap := r.snap.Load()
	if snap.state == StateDestroyed {
		panic(ErrDestroyed)
	}
	return snap
}

// publish copies the current snapshot, applies mutate and swaps it in.
func (r *Resolver) publish(mutate func(next *snapshot)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	if cur.state == StateDestroyed {
		return ErrDestroyed
	}

	next := *cur
	mutate(&next)
	next.generation = cur.generation + 1
	r.snap.Store(&next)

	if r.cache != nil {
		r.cache.Clear()
	}
	return nil
}

// resolve evaluates key against one snapshot. It has no side effects besides the cache.
func (r *Resolver) resolve(snap *snapshot, key Key) Evaluation {
	var cacheKey string
	if r.cache != nil {
		cacheKey = strconv.FormatUint(snap.generation, 10) + ":" + string(key)
		if ev, ok := r.cache.Get(cacheKey); ok {
			return ev
		}
	}

	ev := r.evaluate(snap, key)

	if r.cache != nil {
		r.cache.Set(cacheKey, ev)
	}
	return ev
}

func (r *Resolver) evaluate(snap *snapshot, key Key) Evaluation {
	ev := Evaluation{Key: key, Source: snap.source, Version: snap.version}

	flag, ok := snap.flags[key]
	if !ok {
		ev.Source = SourceFallback
		ev.Reason = ReasonFlagNotFound
		ev.Value, _ = DefaultValue(key)
		return ev
	}

	switch {
	case !flag.Enabled:
		ev.Reason = ReasonDisabled
	case len(flag.Rules) == 0:
		ev.Reason = ReasonDefault
		ev.Value = flag.DefaultValue
	default:
		rule, matched := r.engine.Match(flag.Rules, ruleengine.EvaluationInput{
			User:    snap.user,
			FlagKey: string(key),
		})
		if matched {
			ev.Reason = ReasonRuleMatch
			ev.RuleID = rule.ID
			ev.Value = flag.MatchValue()
		} else {
			ev.Reason = ReasonNoMatch
			ev.Value = flag.DefaultValue
		}
	}
	return ev
}

// track records an evaluation: metrics, optional dev log, usage event.
func (r *Resolver) track(snap *snapshot, ev Evaluation, served any) {
	observability.ResolverEvaluations.WithLabelValues(metricKey(ev), string(ev.Source)).Inc()

	if r.opts.DevelopmentMode {
		r.logger.Info("flag evaluated",
			slog.String("flag_key", string(ev.Key)),
			slog.Any("value", served),
			slog.String("source", string(ev.Source)),
			slog.String("reason", string(ev.Reason)),
			slog.String("user_id", snap.attrs.ID),
		)
	}

	if r.usage != nil {
		r.usage.submit(UsageEvent{
			FlagKey:    ev.Key,
			Value:      cloneValue(served),
			Platform:   snap.attrs.Platform,
			UserID:     snap.attrs.ID,
			Source:     ev.Source,
			Reason:     ev.Reason,
			InstanceID: r.instanceID,
			Time:       time.Now(),
		})
	}
}

// metricKey keeps arbitrary caller keys out of metric labels.
func metricKey(ev Evaluation) string {
	if ev.Reason == ReasonFlagNotFound {
		if _, known := defaults[ev.Key]; !known {
			return "unknown"
		}
	}
	return string(ev.Key)
}

// defaultDefinitions turns the static defaults into rule-less definitions.
func defaultDefinitions() map[Key]*ruleengine.FeatureFlag {
	out := make(map[Key]*ruleengine.FeatureFlag, len(defaults))
	for _, k := range slices.Sorted(maps.Keys(defaults)) {
		out[k] = &ruleengine.FeatureFlag{
			Key:          string(k),
			Enabled:      true,
			DefaultValue: defaults[k],
		}
	}
	return out
}
