package flags

import (
	"maps"
	"slices"

	"github.com/rafaeljc/slipup/internal/ruleengine"
)

// State is the lifecycle position of a Resolver.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDegraded
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the branch Initialize took.
type Outcome string

const (
	OutcomeReady    Outcome = "ready"
	OutcomeDegraded Outcome = "degraded"
)

// InitResult reports what Initialize installed. Ready carries the fetched
// definitions, Degraded carries the reason the defaults were installed.
type InitResult struct {
	Outcome Outcome
	Reason  error
	Version int64
	Keys    []Key
}

// Ready reports whether remote definitions are active.
func (r InitResult) Ready() bool {
	return r.Outcome == OutcomeReady
}

func readyResult(version int64, flags map[Key]*ruleengine.FeatureFlag) InitResult {
	return InitResult{
		Outcome: OutcomeReady,
		Version: version,
		Keys:    slices.Sorted(maps.Keys(flags)),
	}
}

func degradedResult(reason error) InitResult {
	return InitResult{
		Outcome: OutcomeDegraded,
		Reason:  reason,
		Keys:    Keys(),
	}
}

// Source tells where an evaluated value came from.
type Source string

const (
	// SourceRemote is a fetched definition.
	SourceRemote Source = "remote"
	// SourceDefault is the static defaults, active when no remote set is installed.
	SourceDefault Source = "default"
	// SourceFallback is a key missing from the active set.
	SourceFallback Source = "fallback"
)

// Reason explains how the value was chosen.
type Reason string

const (
	ReasonRuleMatch    Reason = "RULE_MATCH"
	ReasonNoMatch      Reason = "NO_MATCH"
	ReasonDisabled     Reason = "DISABLED"
	ReasonFlagNotFound Reason = "FLAG_NOT_FOUND"
	ReasonDefault      Reason = "DEFAULT"
)

// Evaluation is a resolved flag. A nil Value means "no value", which reads
// as false for IsFeatureEnabled and as the caller default for GetFeatureValue.
type Evaluation struct {
	Key     Key    `json:"key"`
	Value   any    `json:"value"`
	Source  Source `json:"source"`
	Reason  Reason `json:"reason"`
	RuleID  string `json:"rule_id,omitempty"`
	Version int64  `json:"version"`
}
