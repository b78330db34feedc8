package inspectapi

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rafaeljc/slipup/internal/flags"
	"github.com/rafaeljc/slipup/internal/logger"
	"github.com/rafaeljc/slipup/internal/validation"
)

// handleState processes GET /v1/state.
func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	snap := a.resolver.Snapshot()

	resp := StateResponse{
		State:      snap.State,
		Source:     snap.Source,
		Version:    snap.Version,
		Generation: snap.Generation,
		Attributes: snap.Attributes,
		InstanceID: a.resolver.InstanceID(),
	}
	if snap.Reason != nil {
		resp.Reason = snap.Reason.Error()
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// handleInitialize processes POST /v1/initialize.
// A degraded outcome is still a 200: the resolver is serving defaults.
func (a *API) handleInitialize(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	// Detached from the request: a client going away must not cancel a fetch
	// other callers share. FetchTimeout still bounds it.
	res, err := a.resolver.Initialize(context.WithoutCancel(r.Context()))
	if err != nil {
		if errors.Is(err, flags.ErrDestroyed) {
			render.Status(r, http.StatusGone)
			render.JSON(w, r, ErrorResponse{Code: "ERR_DESTROYED", Message: err.Error()})
			return
		}
		log.Error("initialize failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Code: "ERR_INTERNAL", Message: "Internal server error"})
		return
	}

	if !res.Ready() {
		log.Warn("initialize degraded", slog.Any("reason", res.Reason))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newInitializeResponse(res))
}

// handleSetTargeting processes PUT /v1/targeting.
func (a *API) handleSetTargeting(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req TargetingRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("invalid json payload", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_JSON",
			Message: "Invalid JSON payload: " + err.Error(),
		})
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errResp)
		return
	}

	a.resolver.SetTargetingAttributes(req.UserID, req.DeviceInfo, req.Extra)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, a.resolver.Snapshot().Attributes)
}

// handleListFlags processes GET /v1/flags.
// Known keys without a remote definition are listed with their fallback evaluation.
func (a *API) handleListFlags(w http.ResponseWriter, r *http.Request) {
	snap := a.resolver.Snapshot()

	keys := make(map[flags.Key]struct{}, len(snap.Definitions))
	for _, k := range flags.Keys() {
		keys[k] = struct{}{}
	}
	for k := range snap.Definitions {
		keys[k] = struct{}{}
	}

	views := make([]FlagView, 0, len(keys))
	for _, k := range slices.Sorted(maps.Keys(keys)) {
		view := FlagView{Evaluation: a.resolver.Evaluate(k)}
		if def, ok := snap.Definitions[k]; ok {
			view.Definition = &def
		}
		views = append(views, view)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, FlagListResponse{
		Data:    views,
		Version: snap.Version,
		Total:   len(views),
	})
}

// handleGetFlag processes GET /v1/flags/{key}.
// Unknown keys are not an error: they resolve to a fallback evaluation.
func (a *API) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	key := flags.Key(chi.URLParam(r, "key"))

	if err := validation.FlagKey(string(key)); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{
			Code:    "ERR_INVALID_KEY",
			Message: err.Error(),
		})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, a.resolver.Evaluate(key))
}
