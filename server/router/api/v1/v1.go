// Package v1 exposes the cache service over plain JSON HTTP.
package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/semcache/internal/profile"
	"github.com/hrygo/semcache/plugin/metrics"
	"github.com/hrygo/semcache/server/cache"
	"github.com/hrygo/semcache/server/internal/errors"
	"github.com/hrygo/semcache/store"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type APIV1Service struct {
	Profile  *profile.Profile
	Engine   *cache.Engine
	Embedder cache.Embedder
	Store    Pinger
	Metrics  *metrics.Collector
}

func NewAPIV1Service(profile *profile.Profile, engine *cache.Engine, embedder cache.Embedder, pinger Pinger, collector *metrics.Collector) *APIV1Service {
	return &APIV1Service{
		Profile:  profile,
		Engine:   engine,
		Embedder: embedder,
		Store:    pinger,
		Metrics:  collector,
	}
}

var _ Pinger = (*store.Store)(nil)

// RegisterRoutes registers all handlers with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.POST("/read_cache", s.ReadCache)
	e.POST("/save_to_cache", s.SaveToCache)
	e.GET("/metrics", s.GetMetrics)
	e.POST("/metrics/reset", s.ResetMetrics)
	e.GET("/health", s.GetHealth)
	e.GET("/health/detailed", s.GetDetailedHealth)
	e.GET("/service-info", s.GetServiceInfo)
}

// errorStatus maps an error to its HTTP status. Validation failures are the
// caller's fault; everything else is an internal failure.
func errorStatus(err error) int {
	if errors.IsCode(err, errors.ErrCodeInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errorParts extracts the client-facing message and code from an error.
func errorParts(err error) (msg, code string) {
	if cerr, ok := err.(*errors.CacheError); ok {
		return cerr.Message, string(cerr.Code)
	}
	return err.Error(), ""
}
