package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertNotNil(t *testing.T) {
	t.Run("Should panic with the dependency name", func(t *testing.T) {
		var ptr *int
		assert.PanicsWithValue(t, "critical error: flag resolver cannot be nil", func() {
			AssertNotNil(ptr, "flag resolver")
		})
	})

	t.Run("Should accept non-nil pointers", func(t *testing.T) {
		v := 1
		assert.NotPanics(t, func() { AssertNotNil(&v, "value") })
	})
}

func TestFlagKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "Should accept snake case keys", key: "flag_email_import"},
		{name: "Should accept dotted and dashed keys", key: "checkout.v2-beta"},
		{name: "Should accept namespaced keys", key: "billing:stripe"},
		{name: "Should reject empty keys", key: "", wantErr: true},
		{name: "Should reject whitespace", key: "flag email", wantErr: true},
		{name: "Should reject path separators", key: "../flag", wantErr: true},
		{name: "Should reject overly long keys", key: strings.Repeat("a", MaxFlagKeyLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FlagKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFlagKey)
				return
			}
			assert.NoError(t, err)
		})
	}
}
