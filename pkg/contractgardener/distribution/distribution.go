package distribution

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
)

// Distribution is an immutable set of predicted monthly peak-power samples (kW).
// It is safe for concurrent reads.
type Distribution struct {
	samples []float64
	sorted  []float64
}

// New builds a distribution from samples. Samples must be finite and
// non-negative; use Sanitize on untrusted model output first.
func New(samples []float64) (*Distribution, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: distribution requires at least one sample", common.ErrEmptyDistribution)
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: sample %d is not finite", common.ErrInvalidParameter, i)
		}
		if s < 0 {
			return nil, fmt.Errorf("%w: sample %d is negative (%v kW)", common.ErrInvalidParameter, i, s)
		}
	}

	owned := make([]float64, len(samples))
	copy(owned, samples)
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	return &Distribution{samples: owned, sorted: sorted}, nil
}

// Len returns the number of samples
func (d *Distribution) Len() int {
	return len(d.samples)
}

// At returns the i-th sample in generation order
func (d *Distribution) At(i int) float64 {
	return d.samples[i]
}

// Samples returns a copy of the samples in generation order
func (d *Distribution) Samples() []float64 {
	out := make([]float64, len(d.samples))
	copy(out, d.samples)
	return out
}

// Percentile returns the empirical quantile for p in [0, 1]
func (d *Distribution) Percentile(p float64) (float64, error) {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: percentile must be within [0, 1], got %v", common.ErrInvalidParameter, p)
	}
	return stat.Quantile(p, stat.Empirical, d.sorted, nil), nil
}

// MustPercentile is Percentile for compile-time constant p
func (d *Distribution) MustPercentile(p float64) float64 {
	v, err := d.Percentile(p)
	if err != nil {
		panic(err)
	}
	return v
}

// Min returns the smallest sample
func (d *Distribution) Min() float64 {
	return d.sorted[0]
}

// Max returns the largest sample
func (d *Distribution) Max() float64 {
	return d.sorted[len(d.sorted)-1]
}

// MeanStd returns the mean and population standard deviation
func (d *Distribution) MeanStd() (mean, std float64) {
	mean, variance := stat.PopMeanVariance(d.samples, nil)
	return mean, math.Sqrt(math.Max(0, variance))
}

// Distinct returns the number of distinct sample values
func (d *Distribution) Distinct() int {
	count := 1
	for i := 1; i < len(d.sorted); i++ {
		if d.sorted[i] != d.sorted[i-1] {
			count++
		}
	}
	return count
}

// Stats summarizes the distribution
func (d *Distribution) Stats() Stats {
	mean, std := d.MeanStd()
	return Stats{
		Count: d.Len(),
		Mean:  mean,
		Std:   std,
		P5:    d.MustPercentile(0.05),
		P50:   d.MustPercentile(0.50),
		P95:   d.MustPercentile(0.95),
		Min:   d.Min(),
		Max:   d.Max(),
	}
}
