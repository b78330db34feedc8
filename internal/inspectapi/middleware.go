package inspectapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rafaeljc/slipup/internal/logger"
	"github.com/rafaeljc/slipup/internal/observability"
)

// routeNotFound labels requests that matched no route, keeping label cardinality bounded.
const routeNotFound = "not_found"

// RequestLogger logs every request and records the inspect API metrics.
// It injects a request-scoped logger carrying the request id into the context.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Get RequestID set by Chi's RequestID middleware
			reqID := middleware.GetReqID(r.Context())
			ctx := logger.WithAttrs(logger.WithContext(r.Context(), base), slog.String("request_id", reqID))
			reqLog := logger.FromContext(ctx)
			r = r.WithContext(ctx)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := routePattern(r)
			observability.InspectReqDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())
			observability.InspectReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()

			// Info for success, Warn for 4xx, Error for 5xx
			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelError
			} else if status >= 400 {
				level = slog.LevelWarn
			}

			reqLog.Log(r.Context(), level, "HTTP request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"duration", duration.String(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}

// routePattern returns the matched chi pattern, never the raw path.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return routeNotFound
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return routeNotFound
}
