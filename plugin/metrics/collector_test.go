package metrics

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(0)

	c.IncrementCounter("cache_requests", 1, map[string]string{"user_id": "u1", "hit": "true"})
	c.IncrementCounter("cache_requests", 1, map[string]string{"hit": "true", "user_id": "u1"})
	c.IncrementCounter("cache_writes", 1, map[string]string{"status": "success"})
	c.IncrementCounter("uptime_checks", 1, nil)

	snap := c.GetSnapshot()
	// Label order must not affect the key.
	assert.Equal(t, int64(2), snap.Counters["cache_requests[hit=true,user_id=u1]"])
	assert.Equal(t, int64(1), snap.Counters["cache_writes[status=success]"])
	assert.Equal(t, int64(1), snap.Counters["uptime_checks"])
}

func TestCollector_Gauges(t *testing.T) {
	c := NewCollector(0)

	c.SetGauge("candidates", 1000, map[string]string{"user_id": "u1"})
	c.SetGauge("candidates", 500, map[string]string{"user_id": "u1"})

	snap := c.GetSnapshot()
	assert.Equal(t, float64(500), snap.Gauges["candidates[user_id=u1]"])
}

func TestCollector_HistogramStats(t *testing.T) {
	c := NewCollector(0)

	for i := 1; i <= 100; i++ {
		c.RecordHistogram("query_latency_ms", float64(i), nil)
	}

	snap := c.GetSnapshot()
	stats, ok := snap.Histograms["query_latency_ms"]
	require.True(t, ok)

	assert.Equal(t, 100, stats.Count)
	assert.Equal(t, float64(5050), stats.Sum)
	assert.Equal(t, 50.5, stats.Avg)
	assert.Equal(t, float64(1), stats.Min)
	assert.Equal(t, float64(100), stats.Max)
	// floor(100 * 0.5) = index 50 -> value 51
	assert.Equal(t, float64(51), stats.P50)
	assert.Equal(t, float64(96), stats.P95)
	assert.Equal(t, float64(100), stats.P99)
}

func TestCollector_HistogramFIFOBound(t *testing.T) {
	c := NewCollector(10)

	for i := 1; i <= 25; i++ {
		c.RecordHistogram("h", float64(i), nil)
	}

	snap := c.GetSnapshot()
	stats := snap.Histograms["h"]
	assert.Equal(t, 10, stats.Count)
	// Oldest evicted first: only 16..25 remain.
	assert.Equal(t, float64(16), stats.Min)
	assert.Equal(t, float64(25), stats.Max)
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector(0)
	c.IncrementCounter("n", 1, nil)
	c.SetGauge("g", 1, nil)
	c.RecordHistogram("h", 1, nil)

	c.Reset()

	snap := c.GetSnapshot()
	assert.Empty(t, snap.Counters)
	assert.Empty(t, snap.Gauges)
	assert.Empty(t, snap.Histograms)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector(100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.IncrementCounter("n", 1, nil)
				c.RecordHistogram("h", float64(j), map[string]string{"worker": fmt.Sprint(n)})
				c.SetGauge("g", float64(j), nil)
				_ = c.GetSnapshot()
			}
		}(i)
	}
	wg.Wait()

	snap := c.GetSnapshot()
	assert.Equal(t, int64(1600), snap.Counters["n"])
}
