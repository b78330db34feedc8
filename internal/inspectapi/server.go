package inspectapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/rafaeljc/slipup/internal/config"
)

// Server runs the inspect API on its own listener.
type Server struct {
	api    *API
	cfg    *config.InspectConfig
	logger *slog.Logger
	server *http.Server
}

// NewServer wraps api with the timeouts from cfg.
func NewServer(api *API, cfg *config.InspectConfig, logger *slog.Logger) *Server {
	return &Server{
		api:    api,
		cfg:    cfg,
		logger: logger,
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           api.Router,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
	}
}

// Start binds the listener synchronously and serves in the background,
// so a port conflict surfaces as an error to the caller.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.Serve(lis)
	return nil
}

// Serve serves on an existing listener in the background.
func (s *Server) Serve(lis net.Listener) {
	s.logger.Info("starting inspect api", slog.String("addr", lis.Addr().String()))

	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("inspect api failed", slog.String("error", err.Error()))
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping inspect api")
	return s.server.Shutdown(ctx)
}
