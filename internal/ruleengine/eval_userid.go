package ruleengine

import "fmt"

// UserSet is the compiled form of a USER_ID_LIST rule.
type UserSet map[string]struct{}

// NewUserSet builds a set from ids. Duplicates collapse.
func NewUserSet(ids ...string) UserSet {
	set := make(UserSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is listed. The empty id is never listed.
func (s UserSet) Contains(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s[id]
	return ok
}

// UserIDEvaluator targets users named on an explicit allow-list.
type UserIDEvaluator struct{}

// Eval expects ruleData to be a UserSet.
func (e *UserIDEvaluator) Eval(ruleData any, input EvaluationInput) (bool, error) {
	set, ok := ruleData.(UserSet)
	if !ok {
		return false, fmt.Errorf("invalid rule data type: expected UserSet, got %T", ruleData)
	}
	return set.Contains(input.User.UserID), nil
}
