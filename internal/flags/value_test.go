package flags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	type banner struct {
		Title string `json:"title"`
		Color string `json:"color"`
	}

	t.Run("Should assert matching scalars", func(t *testing.T) {
		got, ok := convert[bool](true)
		assert.True(t, ok)
		assert.True(t, got)

		s, ok := convert[string]("dark")
		assert.True(t, ok)
		assert.Equal(t, "dark", s)
	})

	t.Run("Should coerce JSON numbers into integers", func(t *testing.T) {
		got, ok := convert[int](float64(3))
		assert.True(t, ok)
		assert.Equal(t, 3, got)

		_, ok = convert[int](3.5)
		assert.False(t, ok)
	})

	t.Run("Should decode objects into structs", func(t *testing.T) {
		got, ok := convert[banner](map[string]any{"title": "Hi", "color": "red"})
		assert.True(t, ok)
		assert.Equal(t, banner{Title: "Hi", Color: "red"}, got)
	})

	t.Run("Should reject objects of another shape", func(t *testing.T) {
		_, ok := convert[banner](map[string]any{"unrelated": float64(1)})
		assert.False(t, ok)

		_, ok = convert[banner](map[string]any{"title": "Hi", "extra": true})
		assert.False(t, ok)
	})

	t.Run("Should hand out copies of maps", func(t *testing.T) {
		src := map[string]any{"a": "b"}
		got, ok := convert[map[string]any](src)
		assert.True(t, ok)

		got["a"] = "mutated"
		assert.Equal(t, "b", src["a"])
	})

	t.Run("Should reject mismatched shapes", func(t *testing.T) {
		_, ok := convert[bool](float64(1))
		assert.False(t, ok)

		_, ok = convert[string](true)
		assert.False(t, ok)

		_, ok = convert[float64]("3")
		assert.False(t, ok)
	})

	t.Run("Should reject nil", func(t *testing.T) {
		_, ok := convert[any](nil)
		assert.False(t, ok)
	})
}

func TestGetFeatureValue_DefaultsOnly(t *testing.T) {
	r := newTestResolver(t, Options{})

	assert.False(t, GetFeatureValue(r, EmailImport, true), "the active default (false) wins over the caller default")
	assert.Equal(t, "caller", GetFeatureValue(r, EmailImport, "caller"), "shape mismatch serves the caller default")
	assert.Equal(t, 7, GetFeatureValue(r, Key("nope"), 7))
}

func TestGetFeatureValue_ShapeMismatchServesCallerDefault(t *testing.T) {
	type banner struct {
		Title string `json:"title"`
	}
	set := decodeSet(t, `{"features": {"flag_email_import": {"defaultValue": {"unrelated": 1}}}}`)
	r := newTestResolver(t, Options{Fetcher: &fakeFetcher{set: set}})
	_, err := r.Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, banner{Title: "caller"}, GetFeatureValue(r, EmailImport, banner{Title: "caller"}))
}
