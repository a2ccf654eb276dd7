package montecarlo

import (
	"math"

	"github.com/iwvelando/rental-forecast/pkg/mathutil"
)

// Distribution summarizes a sample. All fields are zero when Count is zero.
type Distribution struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	P10   float64 `json:"p10"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// Summarize computes the 10th, 50th and 90th percentiles with linear interpolation.
func Summarize(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	p := mathutil.Percentiles(values, 0, 10, 50, 90, 100)
	return Distribution{
		Count: len(values),
		Min:   p[0],
		P10:   p[1],
		P50:   p[2],
		P90:   p[3],
		Max:   p[4],
		Mean:  mathutil.Mean(values),
	}
}

// Histogram buckets a sample into equal-width bins over its range.
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}

// NewHistogram bins values. A sample with no spread collapses into one bin.
func NewHistogram(values []float64, bins int) Histogram {
	if len(values) == 0 || bins <= 0 {
		return Histogram{}
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = mathutil.Min(lo, v)
		hi = mathutil.Max(hi, v)
	}
	if lo == hi {
		return Histogram{Edges: []float64{lo, hi}, Counts: []int{len(values)}}
	}

	width := (hi - lo) / float64(bins)
	h := Histogram{Edges: make([]float64, bins+1), Counts: make([]int, bins)}
	for i := range h.Edges {
		h.Edges[i] = lo + width*float64(i)
	}
	h.Edges[bins] = hi
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		h.Counts[idx]++
	}
	return h
}
