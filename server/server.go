// Package server assembles the HTTP surface and background runners.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/semcache/internal/profile"
	"github.com/hrygo/semcache/plugin/metrics"
	"github.com/hrygo/semcache/server/cache"
	ratelimit "github.com/hrygo/semcache/server/middleware"
	apiv1 "github.com/hrygo/semcache/server/router/api/v1"
	"github.com/hrygo/semcache/server/runner/expiry"
	"github.com/hrygo/semcache/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer   *echo.Echo
	expiryRunner *expiry.Runner
}

// NewServer wires the engine, API handlers, and background runners.
func NewServer(profile *profile.Profile, st *store.Store, engine *cache.Engine, embedder cache.Embedder, collector *metrics.Collector) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if profile.RequestRateLimit > 0 {
		limiter := ratelimit.NewRateLimiter(profile.RequestRateLimit, profile.RequestRateBurst)
		e.Use(limiter.Middleware())
	}

	apiService := apiv1.NewAPIV1Service(profile, engine, embedder, st, collector)
	apiService.RegisterRoutes(e)

	return &Server{
		Profile:      profile,
		Store:        st,
		echoServer:   e,
		expiryRunner: expiry.NewRunner(st, profile.ExpiryInterval),
	}
}

// Start launches the expiry runner and the HTTP listener. It blocks until
// the listener stops.
func (s *Server) Start(ctx context.Context) error {
	go s.expiryRunner.Run(ctx)

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started", "address", address, "driver", s.Profile.Driver)
	if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down http server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shut down")
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echoServer
}
