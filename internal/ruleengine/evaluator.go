package ruleengine

// Evaluator is implemented by every rule strategy.
type Evaluator interface {
	// Eval reports whether input satisfies the rule. ruleData is the rule's
	// CompiledValue; a value of the wrong type is an error, not a mismatch.
	Eval(ruleData any, input EvaluationInput) (bool, error)
}
