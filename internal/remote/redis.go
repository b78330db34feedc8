package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/rafaeljc/slipup/internal/cache"
	"github.com/rafaeljc/slipup/internal/observability"
)

// RedisFetcher reads the definition set published in a cache.Store.
type RedisFetcher struct {
	store cache.Store
}

// NewRedisFetcher wraps a store. The fetcher owns it and closes it on Close.
func NewRedisFetcher(store cache.Store) *RedisFetcher {
	return &RedisFetcher{store: store}
}

// Fetch reads the stored entry. The stored version wins over the one in the document.
func (f *RedisFetcher) Fetch(ctx context.Context) (*DefinitionSet, error) {
	version, payload, err := f.store.GetDefinitions(ctx)
	switch {
	case errors.Is(err, cache.ErrCorruptEntry):
		observability.RemoteFetchTotal.WithLabelValues("redis", "malformed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	case err != nil:
		observability.RemoteFetchTotal.WithLabelValues("redis", "unavailable").Inc()
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}

	set, err := Decode(payload)
	if err != nil {
		observability.RemoteFetchTotal.WithLabelValues("redis", "malformed").Inc()
		return nil, err
	}
	set.Version = version

	observability.RemoteFetchTotal.WithLabelValues("redis", "ok").Inc()
	return set, nil
}

// Close closes the underlying store.
func (f *RedisFetcher) Close() error {
	return f.store.Close()
}
