package remote

import (
	"context"
	"fmt"
	"os"

	"github.com/rafaeljc/slipup/internal/observability"
)

// FileFetcher reads a payload document from the local filesystem.
type FileFetcher struct {
	path string
}

// NewFileFetcher validates the path is non-empty. The file is only read on Fetch.
func NewFileFetcher(path string) (*FileFetcher, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no file path set", ErrRemoteUnavailable)
	}
	return &FileFetcher{path: path}, nil
}

// Fetch reads and decodes the file.
func (f *FileFetcher) Fetch(ctx context.Context) (*DefinitionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		observability.RemoteFetchTotal.WithLabelValues("file", "unavailable").Inc()
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}

	set, err := Decode(raw)
	if err != nil {
		observability.RemoteFetchTotal.WithLabelValues("file", "malformed").Inc()
		return nil, err
	}

	observability.RemoteFetchTotal.WithLabelValues("file", "ok").Inc()
	return set, nil
}

// Close is a no-op.
func (f *FileFetcher) Close() error {
	return nil
}

// ReadPayload reads and validates a payload file, returning the raw bytes and its decoded form.
func ReadPayload(path string) ([]byte, *DefinitionSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	set, err := Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, set, nil
}

