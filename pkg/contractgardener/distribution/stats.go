package distribution

import (
	"fmt"
	"math"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
)

// Stats is the summary block carried with every optimization result
type Stats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	P5    float64 `json:"p5"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Validate checks that the statistics describe a possible distribution
func (s Stats) Validate() error {
	for name, v := range map[string]float64{
		"mean": s.Mean, "std": s.Std, "p5": s.P5, "p50": s.P50, "p95": s.P95, "min": s.Min, "max": s.Max,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", common.ErrInvalidInput, name)
		}
	}
	if s.Count < 1 {
		return fmt.Errorf("%w: sample count must be at least 1, got %d", common.ErrInvalidInput, s.Count)
	}
	if s.Std < 0 {
		return fmt.Errorf("%w: std must be non-negative, got %v", common.ErrInvalidInput, s.Std)
	}
	if s.Min > s.P5 || s.P5 > s.P50 || s.P50 > s.P95 || s.P95 > s.Max {
		return fmt.Errorf("%w: quantiles out of order (min=%v p5=%v p50=%v p95=%v max=%v)",
			common.ErrInvalidInput, s.Min, s.P5, s.P50, s.P95, s.Max)
	}
	tol := 1e-9 * math.Max(1, math.Abs(s.Max))
	if s.Mean < s.Min-tol || s.Mean > s.Max+tol {
		return fmt.Errorf("%w: mean %v outside [%v, %v]", common.ErrInvalidInput, s.Mean, s.Min, s.Max)
	}
	return nil
}
