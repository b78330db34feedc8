// Package ruleengine evaluates feature flag targeting rules locally.
// Each rule type is a strategy (Evaluator) run against the targeting context
// of the current user; the first matching rule wins.
package ruleengine

import "encoding/json"

// Supported rule types. The type string is the discriminator found in flag payloads.
const (
	RuleTypeUserIDList = "USER_ID_LIST"
	RuleTypePercentage = "PERCENTAGE"
	RuleTypeJSONLogic  = "JSON_LOGIC"
)

// Context describes the entity a flag is evaluated for.
type Context struct {
	// UserID is the stable identifier used by list and percentage rules.
	UserID string `json:"user_id"`

	// Attributes holds the remaining targeting dimensions, flattened
	// (platform, app_version, device_os, ...).
	Attributes map[string]string `json:"attributes"`
}

// EvaluationInput aggregates everything an Evaluator may look at.
type EvaluationInput struct {
	User Context

	// FlagKey salts hashing strategies so rollouts are independent per flag.
	FlagKey string
}

// Rule is a single targeting rule as delivered by the flag provider.
type Rule struct {
	ID string `json:"id"`

	// Type selects the Evaluator (USER_ID_LIST, PERCENTAGE, JSON_LOGIC).
	Type string `json:"type"`

	// Value holds the type-specific parameters, e.g.
	//   USER_ID_LIST: {"user_ids": ["a", "b"]}
	//   PERCENTAGE:   {"percentage": 10, "attribute": "user_id"}
	//   JSON_LOGIC:   {"==": [{"var": "platform"}, "android"]}
	Value json.RawMessage `json:"value"`

	// CompiledValue is Value parsed into the structure the Evaluator expects.
	// It is filled by CompileRules and never serialized.
	CompiledValue any `json:"-"`
}

// FeatureFlag is one entry of a definition set.
//
// Resolution order: a disabled flag has no value; otherwise the first
// matching rule serves RuleValue (true when unset) and no match serves
// DefaultValue.
type FeatureFlag struct {
	Key          string `json:"key"`
	Enabled      bool   `json:"enabled"`
	DefaultValue any    `json:"defaultValue"`
	RuleValue    any    `json:"ruleValue,omitempty"`
	Rules        []Rule `json:"rules,omitempty"`
}

// MatchValue returns the value served when a rule matches.
func (f *FeatureFlag) MatchValue() any {
	if f.RuleValue == nil {
		return true
	}
	return f.RuleValue
}
