package ruleengine

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// bucketCount gives rollouts 1% granularity.
const bucketCount = 100

// PercentageEvaluator implements gradual rollouts with sticky bucketing:
// the same subject always lands in the same bucket for a given flag.
type PercentageEvaluator struct{}

// percentageRuleData is the compiled form of a PERCENTAGE rule.
type percentageRuleData struct {
	// Percentage is an integer from 0 to 100.
	Percentage int `json:"percentage"`

	// Attribute names the context field hashed into a bucket (default: "user_id").
	Attribute string `json:"attribute"`
}

// Eval hashes "subject:flagKey" with Murmur3 and compares the bucket to the percentage.
// It is stateless and safe for concurrent use.
func (e *PercentageEvaluator) Eval(ruleData any, input EvaluationInput) (bool, error) {
	data, ok := ruleData.(percentageRuleData)
	if !ok {
		return false, fmt.Errorf("invalid rule data type: expected percentageRuleData, got %T", ruleData)
	}

	subject, ok := hashSubject(data.Attribute, input.User)
	if !ok || subject == "" {
		// Fail closed: without a subject there is nothing stable to hash.
		return false, nil
	}

	return bucketFor(subject, input.FlagKey) < data.Percentage, nil
}

// hashSubject resolves the value to hash for the configured attribute.
func hashSubject(attribute string, user Context) (string, bool) {
	if attribute == "" || attribute == "user_id" || attribute == "id" {
		return user.UserID, true
	}
	val, exists := user.Attributes[attribute]
	return val, exists
}

// bucketFor maps a subject into [0, bucketCount). The flag key is the salt,
// so the lucky 10% of one flag are not the lucky 10% of every flag.
func bucketFor(subject, flagKey string) int {
	hasher := murmur3.New32()
	_, _ = hasher.Write([]byte(subject + ":" + flagKey)) // hash.Hash never returns an error
	return int(hasher.Sum32() % bucketCount)
}
