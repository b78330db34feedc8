package ruleengine

import (
	"log/slog"
)

// Engine is the orchestrator for feature flag evaluation.
type Engine struct {
	strategies map[string]Evaluator
	logger     *slog.Logger
}

// New creates a new Engine with the built-in strategies.
// If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		logger: logger,
		strategies: map[string]Evaluator{
			RuleTypeUserIDList: &UserIDEvaluator{},
			RuleTypePercentage: &PercentageEvaluator{},
			RuleTypeJSONLogic:  &JSONLogicEvaluator{},
		},
	}
}

// Evaluate checks the input against a list of rules following priority order.
func (e *Engine) Evaluate(rules []Rule, input EvaluationInput) bool {
	_, ok := e.Match(rules, input)
	return ok
}

// Match returns the first rule that matches the input.
//
// Unknown rule types and failing strategies are logged and skipped (fail open):
// one bad rule must not break the whole flag.
func (e *Engine) Match(rules []Rule, input EvaluationInput) (Rule, bool) {
	for _, rule := range rules {
		strategy, exists := e.strategies[rule.Type]
		if !exists {
			e.logger.Warn("skipping unknown rule type",
				"type", rule.Type,
				"rule_id", rule.ID,
				"flag_key", input.FlagKey,
			)
			continue
		}

		match, err := strategy.Eval(rule.CompiledValue, input)
		if err != nil {
			e.logger.Error("rule evaluation failed",
				"error", err,
				"rule_id", rule.ID,
				"type", rule.Type,
				"flag_key", input.FlagKey,
			)
			continue
		}

		if match {
			return rule, true
		}
	}

	return Rule{}, false
}
