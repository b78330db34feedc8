package ruleengine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/diegoholiveira/jsonlogic/v3"
)

// JSONLogicEvaluator matches attribute expressions written in JSONLogic,
// e.g. {"and": [{"==": [{"var": "platform"}, "android"]}, {"in": [{"var": "device_os"}, ["android"]]}]}.
//
// The data document exposes "user_id" plus every flattened attribute.
type JSONLogicEvaluator struct{}

// jsonLogicRuleData is the compiled (validated) form of a JSON_LOGIC rule.
type jsonLogicRuleData struct {
	expr []byte
}

// Eval applies the expression and reports whether the result is truthy.
func (e *JSONLogicEvaluator) Eval(ruleData any, input EvaluationInput) (bool, error) {
	data, ok := ruleData.(jsonLogicRuleData)
	if !ok {
		return false, fmt.Errorf("invalid rule data type: expected jsonLogicRuleData, got %T", ruleData)
	}

	doc := make(map[string]string, len(input.User.Attributes)+1)
	for k, v := range input.User.Attributes {
		doc[k] = v
	}
	doc["user_id"] = input.User.UserID

	payload, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to encode jsonlogic data: %w", err)
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(data.expr), bytes.NewReader(payload), &out); err != nil {
		return false, fmt.Errorf("failed to apply jsonlogic rule: %w", err)
	}

	var result any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		return false, fmt.Errorf("failed to decode jsonlogic result: %w", err)
	}

	return Truthy(result), nil
}

// Truthy reports whether a decoded JSON value counts as "on":
// null, false, 0 and "" are off, everything else is on.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case float32:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}
