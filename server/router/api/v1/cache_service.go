package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/semcache/server/cache"
)

// ReadCacheRequest represents a cache lookup request.
type ReadCacheRequest struct {
	UserID    string   `json:"user_id"`
	Query     string   `json:"query"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// ReadCacheResponse represents a cache lookup response. Error paths reuse
// the same shape with an empty response, so clients always get a
// well-formed object.
type ReadCacheResponse struct {
	Response        string  `json:"response"`
	SimilarityScore float64 `json:"similarity_score"`
	LatencyMs       float64 `json:"latency_ms"`
	Error           string  `json:"error,omitempty"`
	Code            string  `json:"code,omitempty"`
}

// SaveToCacheRequest represents a cache write request. Embedding and
// Timestamp (unix seconds) are optional; an absent embedding is generated
// from the query.
type SaveToCacheRequest struct {
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp int64     `json:"timestamp,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// SaveToCacheResponse represents a cache write response.
type SaveToCacheResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ReadCache resolves a query against the caller's cached entries.
// POST /read_cache
func (s *APIV1Service) ReadCache(c echo.Context) error {
	start := time.Now()

	var req ReadCacheRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ReadCacheResponse{
			Error: "malformed request body",
		})
	}

	result, err := s.Engine.Lookup(c.Request().Context(), &cache.QueryRequest{
		UserID:    req.UserID,
		Query:     req.Query,
		Threshold: req.Threshold,
	})
	if err != nil {
		msg, code := errorParts(err)
		return c.JSON(errorStatus(err), ReadCacheResponse{
			Response:  "",
			LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
			Error:     msg,
			Code:      code,
		})
	}

	return c.JSON(http.StatusOK, ReadCacheResponse{
		Response:        result.Response,
		SimilarityScore: result.SimilarityScore,
		LatencyMs:       result.LatencyMs,
	})
}

// SaveToCache stores a (query, response) pair for the caller.
// POST /save_to_cache
func (s *APIV1Service) SaveToCache(c echo.Context) error {
	var req SaveToCacheRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, SaveToCacheResponse{
			Message: "Failed to save to cache",
			Error:   "malformed request body",
		})
	}

	result, err := s.Engine.Save(c.Request().Context(), &cache.SaveRequest{
		UserID:    req.UserID,
		Query:     req.Query,
		Response:  req.Response,
		Timestamp: req.Timestamp,
		Embedding: req.Embedding,
	})
	if err != nil {
		msg, code := errorParts(err)
		return c.JSON(errorStatus(err), SaveToCacheResponse{
			Message: "Failed to save to cache",
			Error:   msg,
			Code:    code,
		})
	}

	return c.JSON(http.StatusOK, SaveToCacheResponse{Message: result.Message})
}
