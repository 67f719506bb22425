package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthResponse represents the basic liveness response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// DetailedHealthResponse reports per-dependency checks.
type DetailedHealthResponse struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// ServiceInfoResponse describes the running deployment.
type ServiceInfoResponse struct {
	Service             string  `json:"service"`
	Version             string  `json:"version"`
	Driver              string  `json:"driver"`
	EmbeddingProvider   string  `json:"embedding_provider"`
	EmbeddingModel      string  `json:"embedding_model"`
	EmbeddingDimensions int     `json:"embedding_dimensions"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	TTLSeconds          int     `json:"ttl_seconds"`
}

// GetMetrics exports a point-in-time snapshot of all metrics.
// GET /metrics
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

// ResetMetrics clears all collected metrics.
// POST /metrics/reset
func (s *APIV1Service) ResetMetrics(c echo.Context) error {
	s.Metrics.Reset()
	return c.JSON(http.StatusOK, map[string]string{"message": "metrics reset"})
}

// GetHealth is the liveness probe.
// GET /health
func (s *APIV1Service) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Unix(),
	})
}

// GetDetailedHealth checks each dependency. The embedding check issues a
// real model call, so this endpoint is for diagnostics, not probes.
// GET /health/detailed
func (s *APIV1Service) GetDetailedHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	checks := map[string]string{
		"database":  "ok",
		"embedding": "ok",
	}
	status := "healthy"

	if err := s.Store.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		status = "degraded"
	}
	if _, err := s.Embedder.Embed(ctx, "healthcheck"); err != nil {
		checks["embedding"] = err.Error()
		status = "degraded"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, DetailedHealthResponse{
		Status:    status,
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	})
}

// GetServiceInfo reports the deployment configuration. The API key is
// never included.
// GET /service-info
func (s *APIV1Service) GetServiceInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, ServiceInfoResponse{
		Service:             "semcache",
		Version:             s.Profile.Version,
		Driver:              s.Profile.Driver,
		EmbeddingProvider:   s.Profile.EmbeddingProvider,
		EmbeddingModel:      s.Profile.EmbeddingModel,
		EmbeddingDimensions: s.Profile.EmbeddingDimensions,
		SimilarityThreshold: s.Profile.SimilarityThreshold,
		TTLSeconds:          s.Profile.TTLSeconds,
	})
}
