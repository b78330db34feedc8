package inspectapi

import (
	"strings"

	"github.com/rafaeljc/slipup/internal/flags"
	"github.com/rafaeljc/slipup/internal/ruleengine"
	"github.com/rafaeljc/slipup/internal/targeting"
)

// maxExtraAttributes bounds the free-form attribute map accepted over HTTP.
const maxExtraAttributes = 64

// TargetingRequest is the payload of PUT /v1/targeting.
// It replaces the whole attribute set on the resolver.
type TargetingRequest struct {
	UserID     string                `json:"user_id"`
	DeviceInfo *targeting.DeviceInfo `json:"device_info,omitempty"`
	Extra      map[string]string     `json:"extra,omitempty"`
}

// Sanitize trims whitespace from the user id.
func (r *TargetingRequest) Sanitize() {
	r.UserID = strings.TrimSpace(r.UserID)
}

// Validate checks the request shape. An empty user id is allowed (anonymous user).
func (r *TargetingRequest) Validate() *ErrorResponse {
	var details []ErrorDetail

	if len(r.Extra) > maxExtraAttributes {
		details = append(details, ErrorDetail{
			Field: "extra",
			Issue: "too many attributes",
		})
	}
	for name := range r.Extra {
		if strings.TrimSpace(name) == "" {
			details = append(details, ErrorDetail{
				Field: "extra",
				Issue: "attribute names cannot be empty",
			})
			break
		}
	}

	if len(details) > 0 {
		return &ErrorResponse{
			Code:    "ERR_VALIDATION",
			Message: "Invalid targeting attributes",
			Details: details,
		}
	}
	return nil
}

// InitializeResponse mirrors flags.InitResult with the error flattened to text.
type InitializeResponse struct {
	Outcome flags.Outcome `json:"outcome"`
	Reason  string        `json:"reason,omitempty"`
	Version int64         `json:"version"`
	Keys    []flags.Key   `json:"keys"`
}

func newInitializeResponse(res flags.InitResult) InitializeResponse {
	out := InitializeResponse{
		Outcome: res.Outcome,
		Version: res.Version,
		Keys:    res.Keys,
	}
	if res.Reason != nil {
		out.Reason = res.Reason.Error()
	}
	return out
}

// StateResponse describes the resolver lifecycle.
type StateResponse struct {
	State      flags.State          `json:"state"`
	Reason     string               `json:"reason,omitempty"`
	Source     flags.Source         `json:"source"`
	Version    int64                `json:"version"`
	Generation uint64               `json:"generation"`
	Attributes targeting.Attributes `json:"attributes"`
	InstanceID string               `json:"instance_id"`
}

// FlagView pairs a definition with its evaluation against the current attributes.
type FlagView struct {
	Evaluation flags.Evaluation        `json:"evaluation"`
	Definition *ruleengine.FeatureFlag `json:"definition,omitempty"`
}

// FlagListResponse is the body of GET /v1/flags.
type FlagListResponse struct {
	Data    []FlagView `json:"data"`
	Version int64      `json:"version"`
	Total   int        `json:"total"`
}

// ErrorResponse represents a standardized API error structure.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_JSON").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details provides optional granular validation errors.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail describes a single field validation error.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}
