// Package sweep drives the engine across a range of spot prices and
// classifies each sample as a success or a skip.
package sweep

import (
	"fmt"

	"github.com/signalnine/greeksweep/internal/engine"
)

// Range is the swept spot price: Count points from Start to End inclusive.
type Range struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Count int     `json:"count" yaml:"count"`
}

func (r Range) Validate() error {
	if r.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", r.Count)
	}
	if r.Count == 1 && r.Start != r.End {
		return fmt.Errorf("a single-point sweep needs start == end, got %v..%v", r.Start, r.End)
	}
	if r.Count > 1 && !(r.Start < r.End) {
		return fmt.Errorf("start must be below end, got %v..%v", r.Start, r.End)
	}
	return nil
}

// Fixed holds the parameters that stay constant across a sweep.
type Fixed struct {
	K     float64 `json:"k" yaml:"k"`
	T     float64 `json:"t" yaml:"t"`
	R     float64 `json:"r" yaml:"r"`
	Sigma float64 `json:"sigma" yaml:"sigma"`
}

// Linspace returns count evenly spaced values from start to end. The last
// value is exactly end.
func Linspace(start, end float64, count int) []float64 {
	if count < 1 {
		return nil
	}
	if count == 1 {
		return []float64{start}
	}
	step := (end - start) / float64(count-1)
	values := make([]float64, count)
	for i := range values {
		values[i] = start + float64(i)*step
	}
	values[count-1] = end
	return values
}

// Samples builds the ordered sample grid for a sweep.
func Samples(r Range, f Fixed) ([]engine.Sample, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sweep range: %w", err)
	}
	spots := Linspace(r.Start, r.End, r.Count)
	samples := make([]engine.Sample, len(spots))
	for i, s := range spots {
		samples[i] = engine.Sample{S: s, K: f.K, T: f.T, R: f.R, Sigma: f.Sigma}
	}
	return samples, nil
}
