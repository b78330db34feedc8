package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePayload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flags.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileFetcher_Fetch(t *testing.T) {
	t.Run("Should read and decode the file", func(t *testing.T) {
		f, err := NewFileFetcher(writePayload(t, validPayload))
		require.NoError(t, err)

		set, err := f.Fetch(context.Background())

		require.NoError(t, err)
		assert.Contains(t, set.Flags, "flag_email_import")
	})

	t.Run("Should report missing file as unavailable", func(t *testing.T) {
		f, err := NewFileFetcher(filepath.Join(t.TempDir(), "missing.json"))
		require.NoError(t, err)

		_, err = f.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrRemoteUnavailable)
	})

	t.Run("Should report invalid content as malformed", func(t *testing.T) {
		f, err := NewFileFetcher(writePayload(t, `{"features": 1}`))
		require.NoError(t, err)

		_, err = f.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("Should honor a cancelled context", func(t *testing.T) {
		f, err := NewFileFetcher(writePayload(t, validPayload))
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = f.Fetch(ctx)
		assert.ErrorIs(t, err, ErrRemoteUnavailable)
	})
}

func TestReadPayload(t *testing.T) {
	raw, set, err := ReadPayload(writePayload(t, validPayload))

	require.NoError(t, err)
	assert.JSONEq(t, validPayload, string(raw))
	assert.Equal(t, int64(3), set.Version)
}
