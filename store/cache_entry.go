package store

// CacheEntry is a stored (query, response) pair with its embedding vector.
// Entries are immutable after creation and age out via the TTL policy; there
// is no update or explicit delete operation.
type CacheEntry struct {
	ID        int64
	UID       string
	UserID    string
	Query     string
	Response  string
	Embedding []float32
	CreatedTs int64
}

// CacheEntryWithScore is a search candidate: an entry plus its similarity
// score. Higher scores are more similar.
type CacheEntryWithScore struct {
	Entry *CacheEntry
	Score float64
}

// VectorSearchOptions parameterizes an approximate-nearest-neighbor lookup.
type VectorSearchOptions struct {
	// UserID is matched exactly; entries are never returned across users.
	UserID string
	// Vector is the query embedding.
	Vector []float32
	// Threshold discards candidates scoring strictly below it.
	Threshold float64
	// NumCandidates is the candidate pool fetched before filtering.
	NumCandidates int
	// Limit caps the number of ranked results after filtering.
	Limit int
	// CreatedAfter excludes entries at or before this unix timestamp.
	// This is how TTL expiry stays invisible to search regardless of when
	// the reaper physically deletes rows.
	CreatedAfter int64
}
