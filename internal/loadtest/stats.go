package loadtest

import (
	"slices"
	"sort"
	"time"
)

// EndpointStats summarizes the latencies of one endpoint key. Latencies are in seconds.
type EndpointStats struct {
	Endpoint string  `json:"endpoint" yaml:"endpoint"`
	Count    int     `json:"count" yaml:"count"`
	Avg      float64 `json:"avg_seconds" yaml:"avg_seconds"`
	Min      float64 `json:"min_seconds" yaml:"min_seconds"`
	Max      float64 `json:"max_seconds" yaml:"max_seconds"`
	P50      float64 `json:"p50_seconds" yaml:"p50_seconds"`
	P95      float64 `json:"p95_seconds" yaml:"p95_seconds"`
}

// ComputeEndpointStats computes statistics over the samples of one endpoint.
// ok is false when there are no samples.
func ComputeEndpointStats(endpoint string, samples []time.Duration) (stats EndpointStats, ok bool) {
	if len(samples) == 0 {
		return EndpointStats{}, false
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return EndpointStats{
		Endpoint: endpoint,
		Count:    len(sorted),
		Avg:      total.Seconds() / float64(len(sorted)),
		Min:      sorted[0].Seconds(),
		Max:      sorted[len(sorted)-1].Seconds(),
		P50:      Percentile(sorted, 0.50).Seconds(),
		P95:      Percentile(sorted, 0.95).Seconds(),
	}, true
}

// Percentile returns the sample at index int(n*q) of an ascending-sorted
// slice, clamped to the last element. A single sample is its own percentile.
// q is a fraction between 0 and 1.
func Percentile(sorted []time.Duration, q float64) time.Duration {
	n := len(sorted)
	switch n {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	index := int(float64(n) * q)
	if index >= n {
		index = n - 1
	}
	if index < 0 {
		index = 0
	}
	return sorted[index]
}

// sortByAvg orders endpoint statistics by ascending mean latency, then by name
func sortByAvg(stats []EndpointStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Avg != stats[j].Avg {
			return stats[i].Avg < stats[j].Avg
		}
		return stats[i].Endpoint < stats[j].Endpoint
	})
}

// percentOf returns part/total*100, or 0 when total is 0
func percentOf(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
