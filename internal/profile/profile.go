package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where semcache stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Cache configuration
	SimilarityThreshold float64 // SEMCACHE_SIMILARITY_THRESHOLD (default: 0.85)
	TTLSeconds          int     // SEMCACHE_CACHE_TTL_SECONDS (default: 86400)
	NumCandidates       int     // SEMCACHE_DEFAULT_NUM_CANDIDATES (default: 1000)
	QueryLimit          int     // SEMCACHE_MAX_QUERY_LIMIT (default: 10)

	// Embedding configuration
	EmbeddingProvider   string        // SEMCACHE_EMBEDDING_PROVIDER (default: openai)
	EmbeddingBaseURL    string        // SEMCACHE_EMBEDDING_BASE_URL
	EmbeddingAPIKey     string        // SEMCACHE_EMBEDDING_API_KEY
	EmbeddingModel      string        // SEMCACHE_EMBEDDING_MODEL (default: text-embedding-3-small)
	EmbeddingDimensions int           // SEMCACHE_EMBEDDING_DIMENSIONS (default: 384)
	EmbedTimeout        time.Duration // SEMCACHE_EMBED_TIMEOUT (default: 30s)
	EmbedConcurrency    int           // SEMCACHE_EMBED_CONCURRENCY (default: 1)
	EmbedRateLimit      float64       // SEMCACHE_EMBED_RATE_LIMIT, requests/sec, 0 = unlimited

	// Storage configuration
	SearchTimeout  time.Duration // SEMCACHE_SEARCH_TIMEOUT (default: 5s)
	ExpiryInterval time.Duration // SEMCACHE_EXPIRY_INTERVAL (default: 60s)
	VectorEncoding string        // SEMCACHE_VECTOR_ENCODING (float32|int8|float16|binary, sqlite only)

	// HTTP configuration
	RequestRateLimit float64 // SEMCACHE_REQUEST_RATE_LIMIT, requests/sec per client, 0 = unlimited
	RequestRateBurst int     // SEMCACHE_REQUEST_RATE_BURST (default: 20)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// TTL returns the entry time-to-live as a duration.
func (p *Profile) TTL() time.Duration {
	return time.Duration(p.TTLSeconds) * time.Second
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// FromEnv loads configuration from SEMCACHE_* environment variables.
func (p *Profile) FromEnv() {
	p.SimilarityThreshold = getFloatEnv("SEMCACHE_SIMILARITY_THRESHOLD", 0.85)
	p.TTLSeconds = getIntEnv("SEMCACHE_CACHE_TTL_SECONDS", 86400)
	p.NumCandidates = getIntEnv("SEMCACHE_DEFAULT_NUM_CANDIDATES", 1000)
	p.QueryLimit = getIntEnv("SEMCACHE_MAX_QUERY_LIMIT", 10)

	p.EmbeddingProvider = getEnvOrDefault("SEMCACHE_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingBaseURL = os.Getenv("SEMCACHE_EMBEDDING_BASE_URL")
	p.EmbeddingAPIKey = os.Getenv("SEMCACHE_EMBEDDING_API_KEY")
	p.EmbeddingModel = getEnvOrDefault("SEMCACHE_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingDimensions = getIntEnv("SEMCACHE_EMBEDDING_DIMENSIONS", 384)
	p.EmbedTimeout = getDurationEnv("SEMCACHE_EMBED_TIMEOUT", 30*time.Second)
	p.EmbedConcurrency = getIntEnv("SEMCACHE_EMBED_CONCURRENCY", 1)
	p.EmbedRateLimit = getFloatEnv("SEMCACHE_EMBED_RATE_LIMIT", 0)

	p.SearchTimeout = getDurationEnv("SEMCACHE_SEARCH_TIMEOUT", 5*time.Second)
	p.ExpiryInterval = getDurationEnv("SEMCACHE_EXPIRY_INTERVAL", time.Minute)
	p.VectorEncoding = getEnvOrDefault("SEMCACHE_VECTOR_ENCODING", "float32")

	p.RequestRateLimit = getFloatEnv("SEMCACHE_REQUEST_RATE_LIMIT", 0)
	p.RequestRateBurst = getIntEnv("SEMCACHE_REQUEST_RATE_BURST", 20)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.SimilarityThreshold < 0 || p.SimilarityThreshold > 1 {
		return errors.Errorf("similarity threshold %.3f out of range [0, 1]", p.SimilarityThreshold)
	}
	if p.TTLSeconds <= 0 {
		return errors.Errorf("cache TTL must be positive, got %d", p.TTLSeconds)
	}
	if p.EmbeddingDimensions <= 0 {
		return errors.Errorf("embedding dimensions must be positive, got %d", p.EmbeddingDimensions)
	}
	if p.NumCandidates <= 0 {
		p.NumCandidates = 1000
	}
	if p.QueryLimit <= 0 {
		p.QueryLimit = 10
	}
	if p.NumCandidates < p.QueryLimit {
		p.NumCandidates = p.QueryLimit
	}
	if p.EmbedConcurrency <= 0 {
		p.EmbedConcurrency = 1
	}

	switch p.VectorEncoding {
	case "":
		p.VectorEncoding = "float32"
	case "float32", "int8", "float16", "binary":
	default:
		return errors.Errorf("unknown vector encoding %q", p.VectorEncoding)
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		if p.Data == "" {
			// In-memory database, demo mode only.
			p.DSN = "file::memory:?cache=shared"
			return nil
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		dbFile := fmt.Sprintf("semcache_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
