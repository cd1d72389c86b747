package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-editor/internal/catalog"
	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/playback"
	"github.com/heimdex/heimdex-editor/internal/render"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	CatalogService catalog.CatalogService
	PlaybackServer playback.TrackServer
	Repository     catalog.Repository
	Runner         *catalog.Runner
	Sessions       *editor.Manager
	Probe          *render.CachedProbe
	Pinger         Pinger
	Logger         *slog.Logger
	StartTime      time.Time
	Version        string

	// RateLimit is the allowed request rate per second under /api. Zero
	// disables limiting.
	RateLimit float64
	// PreviewMode is the preview mode of sessions opened without one.
	PreviewMode bool
	// SessionContext bounds the tickers of sessions opened over HTTP. It
	// defaults to context.Background.
	SessionContext context.Context
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
