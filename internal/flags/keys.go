// Package flags resolves feature toggles for the running process.
//
// A Resolver starts out serving the static defaults below, replaces them with
// a remote definition set on Initialize, and evaluates targeting rules locally
// against the current user's attributes. Lookups never fail: anything missing
// falls back to the defaults.
package flags

import (
	"maps"
	"slices"
)

// Key names a feature toggle.
type Key string

// Known toggles.
const (
	EmailImport   Key = "flag_email_import"
	POSWebhook    Key = "flag_pos_webhook"
	StripeBilling Key = "flag_stripe_billing"
)

var defaults = map[Key]any{
	EmailImport:   false,
	POSWebhook:    false,
	StripeBilling: false,
}

// Keys returns the known toggles in lexical order.
func Keys() []Key {
	return slices.Sorted(maps.Keys(defaults))
}

// Defaults returns a copy of the static default values.
func Defaults() map[Key]any {
	return maps.Clone(defaults)
}

// DefaultValue returns the static default for key.
func DefaultValue(key Key) (any, bool) {
	v, ok := defaults[key]
	return v, ok
}
