// Package stats summarises latency measurements for display and export.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of a set of latencies. All values are
// in milliseconds.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean_ms"`
	StdDev float64 `json:"stddev_ms"`
	Min    float64 `json:"min_ms"`
	Max    float64 `json:"max_ms"`
	P50    float64 `json:"p50_ms"`
	P95    float64 `json:"p95_ms"`
	P99    float64 `json:"p99_ms"`
}

// Summarise computes a Summary from latencies in microseconds, as reported
// by the device. An empty input yields a zero Summary.
func Summarise(latenciesMicros []float64) Summary {
	if len(latenciesMicros) == 0 {
		return Summary{}
	}

	ms := make([]float64, len(latenciesMicros))
	for i, v := range latenciesMicros {
		ms[i] = v / 1000
	}
	sort.Float64s(ms)

	s := Summary{
		Count: len(ms),
		Mean:  stat.Mean(ms, nil),
		Min:   ms[0],
		Max:   ms[len(ms)-1],
		P50:   stat.Quantile(0.50, stat.Empirical, ms, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, ms, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, ms, nil),
	}
	if len(ms) > 1 {
		s.StdDev = stat.StdDev(ms, nil)
	}
	return s
}
