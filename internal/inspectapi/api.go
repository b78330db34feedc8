// Package inspectapi implements the local REST API used to inspect a running
// flag resolver: evaluate flags, swap targeting attributes and re-initialize.
package inspectapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/slipup/internal/flags"
	"github.com/rafaeljc/slipup/internal/validation"
)

// API holds the router and the resolver it inspects.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	resolver *flags.Resolver
	logger   *slog.Logger
}

// NewAPI creates a new API bound to resolver.
// Panics if resolver is nil.
func NewAPI(resolver *flags.Resolver, logger *slog.Logger) *API {
	validation.AssertNotNil(resolver, "flag resolver")
	if logger == nil {
		logger = slog.Default()
	}

	api := &API{
		Router:   chi.NewRouter(),
		resolver: resolver,
		logger:   logger,
	}

	api.configureRoutes()
	return api
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger(a.logger))
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/v1", func(r chi.Router) {
		// Everything below needs a live resolver.
		r.Use(a.requireLive)

		r.Get("/state", a.handleState)
		r.Post("/initialize", a.handleInitialize)
		r.Put("/targeting", a.handleSetTargeting)

		r.Route("/flags", func(r chi.Router) {
			r.Get("/", a.handleListFlags)
			r.Get("/{key}", a.handleGetFlag)
		})
	})
}

func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok", "state": a.resolver.State().String()})
}

// requireLive rejects requests once the resolver has been destroyed.
func (a *API) requireLive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.resolver.State() == flags.StateDestroyed {
			render.Status(r, http.StatusGone)
			render.JSON(w, r, ErrorResponse{
				Code:    "ERR_DESTROYED",
				Message: flags.ErrDestroyed.Error(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
