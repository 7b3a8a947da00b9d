// Package server exposes the batch pipeline and the item store over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"reelpress/internal/batch"
	"reelpress/internal/config"
	"reelpress/internal/model"
	"reelpress/internal/scheduler"
	"reelpress/internal/storage"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Batches is the part of the batch coordinator the API drives.
type Batches interface {
	Submit(ctx context.Context, req batch.Request) (*model.BatchJob, error)
	Process(ctx context.Context, token string) (*model.BatchJob, error)
	Status(ctx context.Context, token string) (*model.BatchJob, error)
	Budget(n int) time.Duration
}

// Platforms reads an item's platform back through the field stores.
type Platforms interface {
	Platform(ctx context.Context, itemID int64) (string, error)
}

// Discoverer lists candidates from the configured feeds.
type Discoverer interface {
	Discover(ctx context.Context) ([]model.Candidate, error)
}

// Sweeper runs one maintenance pass.
type Sweeper interface {
	Sweep(ctx context.Context) (scheduler.Report, error)
}

// Deps are the collaborators behind the API. Discovery may be nil.
type Deps struct {
	Store       storage.Storage
	Batches     Batches
	Platforms   Platforms
	Discovery   Discoverer
	Maintenance Sweeper
}

// Server is the HTTP API.
type Server struct {
	engine *gin.Engine
	cfg    config.HTTPConfig
	api    *API
	log    *slog.Logger
}

// New builds the gin engine with middleware and routes.
func New(cfg config.HTTPConfig, d Deps, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	log = log.With("component", "server")

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(log))
	engine.Use(MaxBodySize(maxBodyBytes))
	engine.Use(CORS(cfg.AllowedOrigins))
	engine.Use(APIKey(cfg.APIKey))

	api := NewAPI(d, log)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg, api: api, log: log}
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down and waits for background batches.
// Background batches inherit ctx, so cancelling it also stops them.
func (s *Server) Run(ctx context.Context) error {
	s.api.base = ctx

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.api.Wait()
	return nil
}

// API holds the route handlers.
type API struct {
	deps Deps
	log  *slog.Logger
	base context.Context
	wg   sync.WaitGroup
}

// NewAPI creates the route handlers.
func NewAPI(d Deps, log *slog.Logger) *API {
	return &API{deps: d, log: log, base: context.Background()}
}

// Wait blocks until every background batch has returned.
func (a *API) Wait() {
	a.wg.Wait()
}
