package inspectapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/slipup/internal/flags"
	"github.com/rafaeljc/slipup/internal/remote"
)

const testPayload = `{"version": 7, "features": {
	"flag_email_import": {"defaultValue": true},
	"flag_stripe_billing": {
		"defaultValue": false,
		"rules": [{"id": "beta", "type": "USER_ID_LIST", "value": {"user_ids": ["vip"]}}]
	},
	"flag_checkout_v2": {"defaultValue": "blue"}
}}`

// stubFetcher serves a fixed definition set or error.
type stubFetcher struct {
	set *remote.DefinitionSet
	err error
}

func (s *stubFetcher) Fetch(ctx context.Context) (*remote.DefinitionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrRemoteUnavailable, err)
	}
	return s.set, s.err
}
func (s *stubFetcher) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAPI(t *testing.T, fetcher remote.Fetcher) (*API, *flags.Resolver) {
	t.Helper()
	r := flags.New(flags.Options{Fetcher: fetcher, Logger: quietLogger()})
	t.Cleanup(r.Destroy)
	return NewAPI(r, quietLogger()), r
}

func readyAPI(t *testing.T) (*API, *flags.Resolver) {
	t.Helper()
	set, err := remote.Decode([]byte(testPayload))
	require.NoError(t, err)

	api, r := setupAPI(t, &stubFetcher{set: set})
	_, err = r.Initialize(context.Background())
	require.NoError(t, err)
	return api, r
}

func do(t *testing.T, api *API, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	api.Router.ServeHTTP(rr, req)
	return rr
}

func TestNewAPI(t *testing.T) {
	t.Run("Should panic on nil resolver", func(t *testing.T) {
		assert.Panics(t, func() { NewAPI(nil, quietLogger()) })
	})
}

func TestHandleHealthCheck(t *testing.T) {
	api, _ := setupAPI(t, &stubFetcher{err: remote.ErrRemoteUnavailable})

	rr := do(t, api, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status": "ok", "state": "uninitialized"}`, rr.Body.String())
}

func TestHandleInitialize(t *testing.T) {
	t.Run("Should report ready with the fetched keys", func(t *testing.T) {
		set, err := remote.Decode([]byte(testPayload))
		require.NoError(t, err)
		api, _ := setupAPI(t, &stubFetcher{set: set})

		rr := do(t, api, http.MethodPost, "/v1/initialize", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp InitializeResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, flags.OutcomeReady, resp.Outcome)
		assert.Equal(t, int64(7), resp.Version)
		assert.Empty(t, resp.Reason)
		assert.Contains(t, resp.Keys, flags.Key("flag_checkout_v2"))
	})

	t.Run("Should report degraded with a reason and still answer 200", func(t *testing.T) {
		api, _ := setupAPI(t, &stubFetcher{err: remote.ErrRemoteUnavailable})

		rr := do(t, api, http.MethodPost, "/v1/initialize", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp InitializeResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, flags.OutcomeDegraded, resp.Outcome)
		assert.NotEmpty(t, resp.Reason)
		assert.ElementsMatch(t, flags.Keys(), resp.Keys)
	})
}

func TestHandleInitialize_CancelledRequest(t *testing.T) {
	api, r := readyAPI(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/initialize", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	api.Router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp InitializeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, flags.OutcomeReady, resp.Outcome)
	assert.Equal(t, flags.StateReady, r.State())
	assert.True(t, r.IsFeatureEnabled("flag_email_import"), "remote definitions stay active")
}

func TestHandleGetFlag(t *testing.T) {
	api, _ := readyAPI(t)

	tests := []struct {
		name       string
		key        string
		wantValue  any
		wantSource flags.Source
		wantReason flags.Reason
	}{
		{
			name:       "Should serve the remote default value",
			key:        "flag_email_import",
			wantValue:  true,
			wantSource: flags.SourceRemote,
			wantReason: flags.ReasonDefault,
		},
		{
			name:       "Should serve non-boolean values",
			key:        "flag_checkout_v2",
			wantValue:  "blue",
			wantSource: flags.SourceRemote,
			wantReason: flags.ReasonDefault,
		},
		{
			name:       "Should report no match when the rule does not target the user",
			key:        "flag_stripe_billing",
			wantValue:  false,
			wantSource: flags.SourceRemote,
			wantReason: flags.ReasonNoMatch,
		},
		{
			name:       "Should fall back for keys missing from the remote set",
			key:        "flag_pos_webhook",
			wantValue:  false,
			wantSource: flags.SourceFallback,
			wantReason: flags.ReasonFlagNotFound,
		},
		{
			name:       "Should fall back to nil for unknown keys",
			key:        "flag_does_not_exist",
			wantValue:  nil,
			wantSource: flags.SourceFallback,
			wantReason: flags.ReasonFlagNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, api, http.MethodGet, "/v1/flags/"+tt.key, nil)

			require.Equal(t, http.StatusOK, rr.Code)
			var ev flags.Evaluation
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ev))
			assert.Equal(t, flags.Key(tt.key), ev.Key)
			assert.Equal(t, tt.wantValue, ev.Value)
			assert.Equal(t, tt.wantSource, ev.Source)
			assert.Equal(t, tt.wantReason, ev.Reason)
		})
	}
}

func TestHandleGetFlag_InvalidKey(t *testing.T) {
	api, _ := readyAPI(t)

	rr := do(t, api, http.MethodGet, "/v1/flags/bad%20key", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "ERR_INVALID_KEY")
}

func TestHandleListFlags(t *testing.T) {
	api, _ := readyAPI(t)

	rr := do(t, api, http.MethodGet, "/v1/flags", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp FlagListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	// Three known keys plus one remote-only key.
	assert.Equal(t, 4, resp.Total)
	assert.Len(t, resp.Data, 4)
	assert.Equal(t, int64(7), resp.Version)

	byKey := make(map[flags.Key]FlagView, len(resp.Data))
	for _, v := range resp.Data {
		byKey[v.Evaluation.Key] = v
	}
	require.Contains(t, byKey, flags.Key("flag_pos_webhook"))
	assert.Nil(t, byKey["flag_pos_webhook"].Definition)
	require.NotNil(t, byKey["flag_stripe_billing"].Definition)
	assert.Len(t, byKey["flag_stripe_billing"].Definition.Rules, 1)
}

func TestHandleSetTargeting(t *testing.T) {
	t.Run("Should replace attributes and re-evaluate against them", func(t *testing.T) {
		api, r := readyAPI(t)

		rr := do(t, api, http.MethodPut, "/v1/targeting", []byte(`{
			"user_id": "  vip  ",
			"device_info": {"os": "android", "model": "Pixel 8"},
			"extra": {"plan": "pro"}
		}`))
		require.Equal(t, http.StatusOK, rr.Code)

		snap := r.Snapshot()
		assert.Equal(t, "vip", snap.Attributes.ID)
		require.NotNil(t, snap.Attributes.Device)
		assert.Equal(t, "Pixel 8", snap.Attributes.Device.Model)
		assert.Equal(t, map[string]string{"plan": "pro"}, snap.Attributes.Extra)

		rr = do(t, api, http.MethodGet, "/v1/flags/flag_stripe_billing", nil)
		var ev flags.Evaluation
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ev))
		assert.Equal(t, true, ev.Value)
		assert.Equal(t, flags.ReasonRuleMatch, ev.Reason)
		assert.Equal(t, "beta", ev.RuleID)
	})

	t.Run("Should drop attributes not present in the new set", func(t *testing.T) {
		api, r := readyAPI(t)

		do(t, api, http.MethodPut, "/v1/targeting", []byte(`{"user_id": "a", "extra": {"plan": "pro"}}`))
		rr := do(t, api, http.MethodPut, "/v1/targeting", []byte(`{"user_id": "b"}`))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, r.Snapshot().Attributes.Extra)
		assert.Nil(t, r.Snapshot().Attributes.Device)
	})

	t.Run("Should reject malformed JSON", func(t *testing.T) {
		api, _ := readyAPI(t)

		rr := do(t, api, http.MethodPut, "/v1/targeting", []byte(`{"user_id":`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "ERR_INVALID_JSON")
	})

	t.Run("Should reject empty extra attribute names", func(t *testing.T) {
		api, _ := readyAPI(t)

		rr := do(t, api, http.MethodPut, "/v1/targeting", []byte(`{"user_id": "a", "extra": {" ": "x"}}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "ERR_VALIDATION")
	})
}

func TestHandleState(t *testing.T) {
	api, r := readyAPI(t)
	r.SetTargetingAttributes("user-42", nil, nil)

	rr := do(t, api, http.MethodGet, "/v1/state", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp["state"])
	assert.Equal(t, "remote", resp["source"])
	assert.Equal(t, float64(7), resp["version"])
	assert.Equal(t, r.InstanceID(), resp["instance_id"])
	attrs, ok := resp["attributes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-42", attrs["id"])
}

func TestDestroyedResolver(t *testing.T) {
	api, r := readyAPI(t)
	r.Destroy()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/state"},
		{http.MethodGet, "/v1/flags"},
		{http.MethodGet, "/v1/flags/flag_email_import"},
		{http.MethodPost, "/v1/initialize"},
		{http.MethodPut, "/v1/targeting"},
	}

	for _, p := range paths {
		t.Run("Should answer 410 on "+p.method+" "+p.path, func(t *testing.T) {
			rr := do(t, api, p.method, p.path, []byte(`{}`))

			assert.Equal(t, http.StatusGone, rr.Code)
			assert.Contains(t, rr.Body.String(), "ERR_DESTROYED")
		})
	}

	t.Run("Should keep the health endpoint available", func(t *testing.T) {
		rr := do(t, api, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "destroyed")
	})
}
