package ruleengine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/diegoholiveira/jsonlogic/v3"
)

// MaxUserIDListSize limits the number of user IDs in a single USER_ID_LIST rule.
// Lists this large belong in a percentage or attribute rule instead.
const MaxUserIDListSize = 10_000

// CompileRules parses each rule's Value into its CompiledValue.
// It must run once per fetched definition set, before any evaluation.
func CompileRules(rules []Rule) error {
	for i := range rules {
		if err := compileRule(&rules[i]); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rules[i].ID, err)
		}
	}
	return nil
}

// CompileFlag compiles every rule of a flag.
func CompileFlag(flag *FeatureFlag) error {
	if err := CompileRules(flag.Rules); err != nil {
		return fmt.Errorf("flag %q: %w", flag.Key, err)
	}
	return nil
}

func compileRule(rule *Rule) error {
	switch rule.Type {
	case RuleTypeUserIDList:
		return compileUserIDListRule(rule)
	case RuleTypePercentage:
		return compilePercentageRule(rule)
	case RuleTypeJSONLogic:
		return compileJSONLogicRule(rule)
	default:
		// Unknown rule types are skipped at evaluation time (fail open)
		return nil
	}
}

// compileUserIDListRule parses {"user_ids": [...]} into a set.
func compileUserIDListRule(rule *Rule) error {
	var data struct {
		UserIDs []string `json:"user_ids"`
	}

	if err := json.Unmarshal(rule.Value, &data); err != nil {
		return fmt.Errorf("invalid USER_ID_LIST rule data: %w", err)
	}

	if len(data.UserIDs) > MaxUserIDListSize {
		return fmt.Errorf("USER_ID_LIST rule exceeds maximum size: %d > %d", len(data.UserIDs), MaxUserIDListSize)
	}

	rule.CompiledValue = NewUserSet(data.UserIDs...)
	return nil
}

func compilePercentageRule(rule *Rule) error {
	var data percentageRuleData

	if err := json.Unmarshal(rule.Value, &data); err != nil {
		return fmt.Errorf("invalid PERCENTAGE rule data: %w", err)
	}

	if data.Percentage < 0 || data.Percentage > 100 {
		return fmt.Errorf("percentage must be between 0 and 100, got %d", data.Percentage)
	}

	rule.CompiledValue = data
	return nil
}

// compileJSONLogicRule checks the expression once so that evaluation never sees invalid logic.
func compileJSONLogicRule(rule *Rule) error {
	if len(bytes.TrimSpace(rule.Value)) == 0 {
		return fmt.Errorf("invalid JSON_LOGIC rule data: empty expression")
	}

	if !json.Valid(rule.Value) {
		return fmt.Errorf("invalid JSON_LOGIC rule data: malformed JSON")
	}

	if !jsonlogic.IsValid(bytes.NewReader(rule.Value)) {
		return fmt.Errorf("invalid JSON_LOGIC rule data: unsupported expression")
	}

	rule.CompiledValue = jsonLogicRuleData{expr: bytes.Clone(rule.Value)}
	return nil
}
