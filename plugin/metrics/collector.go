// Package metrics provides a process-wide metrics collector for the cache
// service: counters, gauges, and rolling-window histograms exported as a
// point-in-time snapshot.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultMaxHistory is the number of samples retained per histogram key.
const DefaultMaxHistory = 5000

// Collector aggregates counters, gauges, and histograms in memory.
// All methods are safe for concurrent use.
type Collector struct {
	mu sync.RWMutex

	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64

	startTime  time.Time
	maxHistory int
}

// NewCollector creates a collector retaining at most maxHistory samples per
// histogram key. A non-positive maxHistory falls back to DefaultMaxHistory.
func NewCollector(maxHistory int) *Collector {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Collector{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		startTime:  time.Now(),
		maxHistory: maxHistory,
	}
}

// IncrementCounter adds value to a counter metric.
func (c *Collector) IncrementCounter(name string, value int64, labels map[string]string) {
	key := makeKey(name, labels)
	c.mu.Lock()
	c.counters[key] += value
	c.mu.Unlock()
}

// SetGauge sets a gauge metric to the given value.
func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	key := makeKey(name, labels)
	c.mu.Lock()
	c.gauges[key] = value
	c.mu.Unlock()
}

// RecordHistogram appends a sample to a histogram key, evicting the oldest
// sample once the window is full.
func (c *Collector) RecordHistogram(name string, value float64, labels map[string]string) {
	key := makeKey(name, labels)
	c.mu.Lock()
	hist := append(c.histograms[key], value)
	if len(hist) > c.maxHistory {
		hist = hist[len(hist)-c.maxHistory:]
	}
	c.histograms[key] = hist
	c.mu.Unlock()
}

// Reset clears all metrics. The uptime baseline is preserved.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.counters = make(map[string]int64)
	c.gauges = make(map[string]float64)
	c.histograms = make(map[string][]float64)
	c.mu.Unlock()
}

// HistogramStats summarizes one histogram window.
type HistogramStats struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Snapshot is a read-only export of all metrics.
type Snapshot struct {
	UptimeSeconds float64                   `json:"uptime_seconds"`
	Counters      map[string]int64          `json:"counters"`
	Gauges        map[string]float64        `json:"gauges"`
	Histograms    map[string]HistogramStats `json:"histograms"`
}

// GetSnapshot returns a summary of all metrics. Histogram percentiles are
// computed by sorting the window and indexing at floor(count * p).
func (c *Collector) GetSnapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := &Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Counters:      make(map[string]int64, len(c.counters)),
		Gauges:        make(map[string]float64, len(c.gauges)),
		Histograms:    make(map[string]HistogramStats, len(c.histograms)),
	}
	for k, v := range c.counters {
		snapshot.Counters[k] = v
	}
	for k, v := range c.gauges {
		snapshot.Gauges[k] = v
	}

	for key, values := range c.histograms {
		if len(values) == 0 {
			continue
		}
		sorted := make([]float64, len(values))
		copy(sorted, values)
		sort.Float64s(sorted)

		count := len(sorted)
		var sum float64
		for _, v := range sorted {
			sum += v
		}
		snapshot.Histograms[key] = HistogramStats{
			Count: count,
			Sum:   sum,
			Avg:   sum / float64(count),
			Min:   sorted[0],
			Max:   sorted[count-1],
			P50:   percentile(sorted, 0.5),
			P95:   percentile(sorted, 0.95),
			P99:   percentile(sorted, 0.99),
		}
	}

	return snapshot
}

// percentile indexes the sorted window at floor(count * p).
func percentile(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// makeKey builds a metric key from a name and sorted labels, e.g.
// "cache_requests[hit=true,user_id=u1]".
func makeKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
	}
	sb.WriteByte(']')
	return sb.String()
}
