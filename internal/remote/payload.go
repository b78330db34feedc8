package remote

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/rafaeljc/slipup/internal/ruleengine"
)

// DefinitionSet is a decoded, compiled set of flag definitions.
type DefinitionSet struct {
	Version int64
	Flags   map[string]*ruleengine.FeatureFlag
}

// Payload is the wire form served by every provider.
type Payload struct {
	Version  int64                  `json:"version"`
	Features map[string]FeatureSpec `json:"features"`
}

// FeatureSpec is one flag on the wire. Enabled defaults to true when absent.
type FeatureSpec struct {
	Enabled      *bool             `json:"enabled,omitempty"`
	DefaultValue any               `json:"defaultValue"`
	RuleValue    any               `json:"ruleValue,omitempty"`
	Rules        []ruleengine.Rule `json:"rules,omitempty"`
}

const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["features"],
  "properties": {
    "version": {"type": "integer", "minimum": 0},
    "features": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["defaultValue"],
        "properties": {
          "enabled": {"type": "boolean"},
          "defaultValue": {},
          "ruleValue": {},
          "rules": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["type", "value"],
              "properties": {
                "id": {"type": "string"},
                "type": {"type": "string", "minLength": 1},
                "value": {}
              }
            }
          }
        }
      }
    }
  }
}`

var schema = mustSchema(payloadSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("remote: invalid payload schema: %v", err))
	}
	return s
}

// ValidatePayload checks raw bytes against the payload schema.
func ValidatePayload(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedResponse)
	}
	if !json.Valid(data) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrMalformedResponse)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(msgs, "; "))
	}
	return nil
}

// Decode validates, parses and compiles a payload.
func Decode(data []byte) (*DefinitionSet, error) {
	if err := ValidatePayload(data); err != nil {
		return nil, err
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	set := &DefinitionSet{
		Version: p.Version,
		Flags:   make(map[string]*ruleengine.FeatureFlag, len(p.Features)),
	}
	for key, spec := range p.Features {
		flag := &ruleengine.FeatureFlag{
			Key:          key,
			Enabled:      spec.Enabled == nil || *spec.Enabled,
			DefaultValue: spec.DefaultValue,
			RuleValue:    spec.RuleValue,
			Rules:        spec.Rules,
		}
		if err := ruleengine.CompileFlag(flag); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		set.Flags[key] = flag
	}

	return set, nil
}
