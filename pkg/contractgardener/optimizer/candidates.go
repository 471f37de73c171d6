package optimizer

import (
	"fmt"
	"math"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/distribution"
)

// maxGridIndex keeps candidate indices well inside the int range.
const maxGridIndex = float64(math.MaxInt32)

// GenerateCandidates returns every multiple of the step between the padded
// lower and upper anchor percentiles, ascending. A distribution with a single
// distinct value gets a fixed window around that value instead.
func GenerateCandidates(d *distribution.Distribution, cfg config.OptimizerConfig) ([]float64, error) {
	if d == nil || d.Len() == 0 {
		return nil, fmt.Errorf("%w: cannot generate candidates", common.ErrEmptyDistribution)
	}
	step := cfg.StepKW
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: step must be positive, got %v kW", common.ErrInvalidParameter, step)
	}

	var lowF, highF float64
	if d.Distinct() < 2 {
		lowF, highF = degenerateWindow(d.Min(), step, cfg)
	} else {
		lower, err := d.Percentile(cfg.LowerAnchorPercentile)
		if err != nil {
			return nil, err
		}
		upper, err := d.Percentile(cfg.UpperAnchorPercentile)
		if err != nil {
			return nil, err
		}
		lowF = math.Max(1, math.Floor((lower-cfg.PadKW)/step))
		highF = math.Max(lowF, math.Ceil((upper+cfg.PadKW)/step))
	}

	// Bounds are checked before conversion to int.
	if highF > maxGridIndex {
		return nil, fmt.Errorf("%w: candidate grid up to %v kW is out of range for a %v kW step",
			common.ErrInvalidParameter, highF*step, step)
	}
	if span := highF - lowF + 1; cfg.MaxCandidates > 0 && span > float64(cfg.MaxCandidates) {
		return nil, fmt.Errorf("%w: %.0f candidates between %v and %v kW exceeds the limit of %d, increase the step",
			common.ErrInvalidParameter, span, lowF*step, highF*step, cfg.MaxCandidates)
	}
	lowIdx, highIdx := int(lowF), int(highF)
	count := highIdx - lowIdx + 1

	candidates := make([]float64, 0, count)
	for i := lowIdx; i <= highIdx; i++ {
		candidates = append(candidates, float64(i)*step)
	}
	return candidates, nil
}

// degenerateWindow centers a window of at least DegenerateMinSteps steps on
// value, spanning value +/- DegenerateMarginRatio*value. Bounds are grid
// indices.
func degenerateWindow(value, step float64, cfg config.OptimizerConfig) (float64, float64) {
	minSteps := float64(max(1, cfg.DegenerateMinSteps))
	half := math.Max(cfg.DegenerateMarginRatio*value, minSteps*step/2)

	lowIdx := math.Max(1, math.Floor((value-half)/step))
	highIdx := math.Ceil((value + half) / step)
	if highIdx-lowIdx < minSteps {
		highIdx = lowIdx + minSteps
	}
	return lowIdx, highIdx
}
