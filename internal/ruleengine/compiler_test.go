package ruleengine

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRules(t *testing.T) {
	t.Run("Should compile a user list into a set", func(t *testing.T) {
		rules := []Rule{{ID: "r1", Type: RuleTypeUserIDList, Value: json.RawMessage(`{"user_ids": ["a", "b", "a"]}`)}}

		require.NoError(t, CompileRules(rules))

		set, ok := rules[0].CompiledValue.(UserSet)
		require.True(t, ok, "expected UserSet, got %T", rules[0].CompiledValue)
		assert.Len(t, set, 2, "duplicates collapse in the set")
		assert.Contains(t, set, "a")
	})

	t.Run("Should compile an empty user list into an empty set", func(t *testing.T) {
		rules := []Rule{{ID: "r1", Type: RuleTypeUserIDList, Value: json.RawMessage(`{"user_ids": []}`)}}

		require.NoError(t, CompileRules(rules))

		set, ok := rules[0].CompiledValue.(UserSet)
		require.True(t, ok)
		assert.Empty(t, set)
	})

	t.Run("Should compile percentage rules", func(t *testing.T) {
		rules := []Rule{{ID: "r2", Type: RuleTypePercentage, Value: json.RawMessage(`{"percentage": 25, "attribute": "device_model"}`)}}

		require.NoError(t, CompileRules(rules))

		data, ok := rules[0].CompiledValue.(percentageRuleData)
		require.True(t, ok, "expected percentageRuleData, got %T", rules[0].CompiledValue)
		assert.Equal(t, 25, data.Percentage)
		assert.Equal(t, "device_model", data.Attribute)
	})

	t.Run("Should compile JSONLogic rules", func(t *testing.T) {
		rules := []Rule{{ID: "r3", Type: RuleTypeJSONLogic, Value: json.RawMessage(`{"==": [{"var": "platform"}, "android"]}`)}}

		require.NoError(t, CompileRules(rules))

		_, ok := rules[0].CompiledValue.(jsonLogicRuleData)
		assert.True(t, ok)
	})

	t.Run("Should leave unknown rule types uncompiled", func(t *testing.T) {
		rules := []Rule{{ID: "geo", Type: "GEO_LOCATION", Value: json.RawMessage(`{"country": "BR"}`)}}

		require.NoError(t, CompileRules(rules))

		assert.Nil(t, rules[0].CompiledValue)
	})

	t.Run("Should enforce the user list size limit", func(t *testing.T) {
		ids := make([]string, MaxUserIDListSize+1)
		for i := range ids {
			ids[i] = fmt.Sprintf("user-%d", i)
		}
		raw, err := json.Marshal(map[string]any{"user_ids": ids})
		require.NoError(t, err)

		err = CompileRules([]Rule{{ID: "big", Type: RuleTypeUserIDList, Value: raw}})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds maximum size")
	})

	t.Run("Should stop at the first invalid rule and name it", func(t *testing.T) {
		rules := []Rule{
			{ID: "ok", Type: RuleTypeUserIDList, Value: json.RawMessage(`{"user_ids": ["a"]}`)},
			{ID: "broken", Type: RuleTypePercentage, Value: json.RawMessage(`{"percentage": 101}`)},
			{ID: "never", Type: RuleTypeUserIDList, Value: json.RawMessage(`{"user_ids": ["b"]}`)},
		}

		err := CompileRules(rules)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
		assert.NotNil(t, rules[0].CompiledValue)
		assert.Nil(t, rules[2].CompiledValue)
	})
}

func TestCompileRules_InvalidData(t *testing.T) {
	tests := []struct {
		name      string
		ruleType  string
		value     string
		errSubstr string
	}{
		{name: "user list with malformed JSON", ruleType: RuleTypeUserIDList, value: `{"user_ids": [`, errSubstr: "invalid USER_ID_LIST"},
		{name: "user list with wrong field type", ruleType: RuleTypeUserIDList, value: `{"user_ids": "a"}`, errSubstr: "invalid USER_ID_LIST"},
		{name: "percentage below zero", ruleType: RuleTypePercentage, value: `{"percentage": -1}`, errSubstr: "between 0 and 100"},
		{name: "percentage as string", ruleType: RuleTypePercentage, value: `{"percentage": "10"}`, errSubstr: "invalid PERCENTAGE"},
		{name: "jsonlogic empty", ruleType: RuleTypeJSONLogic, value: ``, errSubstr: "empty expression"},
		{name: "jsonlogic malformed", ruleType: RuleTypeJSONLogic, value: `{"==": [`, errSubstr: "malformed JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CompileRules([]Rule{{ID: "bad", Type: tt.ruleType, Value: json.RawMessage(tt.value)}})

			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.errSubstr), "error %q should contain %q", err, tt.errSubstr)
		})
	}
}

func TestCompileFlag(t *testing.T) {
	flag := &FeatureFlag{
		Key:   "flag_pos_webhook",
		Rules: []Rule{{ID: "bad", Type: RuleTypePercentage, Value: json.RawMessage(`{"percentage": 500}`)}},
	}

	err := CompileFlag(flag)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag_pos_webhook")
}

func TestFeatureFlag_MatchValue(t *testing.T) {
	assert.Equal(t, true, (&FeatureFlag{}).MatchValue(), "boolean flags serve true on match")
	assert.Equal(t, "blue", (&FeatureFlag{RuleValue: "blue"}).MatchValue())
}
