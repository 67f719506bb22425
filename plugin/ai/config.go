package ai

import (
	"fmt"
	"time"

	"github.com/hrygo/semcache/internal/profile"
)

// EmbeddingConfig holds the embedding provider configuration.
type EmbeddingConfig struct {
	Provider   string // "openai", "siliconflow", or "ollama"
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int

	Timeout     time.Duration
	Concurrency int     // max in-flight model calls
	RateLimit   float64 // requests/sec, 0 = unlimited
}

// NewEmbeddingConfigFromProfile builds the embedding configuration from the
// server profile.
func NewEmbeddingConfigFromProfile(p *profile.Profile) *EmbeddingConfig {
	return &EmbeddingConfig{
		Provider:    p.EmbeddingProvider,
		BaseURL:     p.EmbeddingBaseURL,
		APIKey:      p.EmbeddingAPIKey,
		Model:       p.EmbeddingModel,
		Dimensions:  p.EmbeddingDimensions,
		Timeout:     p.EmbedTimeout,
		Concurrency: p.EmbedConcurrency,
		RateLimit:   p.EmbedRateLimit,
	}
}

// Validate checks the configuration for startup.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("embedding provider is required")
	}
	if c.Provider != "ollama" && c.APIKey == "" {
		return fmt.Errorf("embedding API key is required, set SEMCACHE_EMBEDDING_API_KEY")
	}
	if c.Model == "" {
		return fmt.Errorf("embedding model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Dimensions)
	}
	return nil
}
