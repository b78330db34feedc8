package validation

import (
	"errors"
	"fmt"
	"regexp"
)

// MaxFlagKeyLength bounds flag keys accepted from callers.
const MaxFlagKeyLength = 255

// flagKeyPattern accepts keys such as "flag_email_import" or "checkout.v2-beta".
var flagKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

// ErrInvalidFlagKey is wrapped by every FlagKey failure.
var ErrInvalidFlagKey = errors.New("invalid flag key")

// FlagKey checks that key is non-empty, bounded and made of URL-safe characters.
// Keys that pass may still be unknown to the resolver; that is not a validation error.
func FlagKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: key is required", ErrInvalidFlagKey)
	case len(key) > MaxFlagKeyLength:
		return fmt.Errorf("%w: key must be at most %d characters", ErrInvalidFlagKey, MaxFlagKeyLength)
	case !flagKeyPattern.MatchString(key):
		return fmt.Errorf("%w: key may only contain letters, digits, '_', '.', ':' and '-'", ErrInvalidFlagKey)
	}
	return nil
}
