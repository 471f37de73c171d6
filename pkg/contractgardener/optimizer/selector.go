package optimizer

import (
	"fmt"
	"math"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
)

// Selector scores evaluated candidates and picks one contract value
type Selector struct {
	weights   config.RiskWeights
	ceiling   float64
	tolerance float64
}

// NewSelector creates a risk scorer/selector
func NewSelector(cfg config.OptimizerConfig) *Selector {
	return &Selector{
		weights:   cfg.Weights,
		ceiling:   cfg.OverageCeiling,
		tolerance: cfg.TieTolerance,
	}
}

// Score returns a scored copy of the evaluations. Expected cost and cost std
// are min-max normalized across the set before weighting.
func (s *Selector) Score(evaluations []CandidateEvaluation) []CandidateEvaluation {
	scored := make([]CandidateEvaluation, len(evaluations))
	copy(scored, evaluations)
	if len(scored) == 0 {
		return scored
	}

	minCost, maxCost := math.Inf(1), math.Inf(-1)
	minStd, maxStd := math.Inf(1), math.Inf(-1)
	for _, ev := range scored {
		minCost = math.Min(minCost, ev.ExpectedAnnualCost)
		maxCost = math.Max(maxCost, ev.ExpectedAnnualCost)
		minStd = math.Min(minStd, ev.CostStd)
		maxStd = math.Max(maxStd, ev.CostStd)
	}

	for i := range scored {
		ev := &scored[i]
		ev.RiskScore = s.weights.Cost*normalize(ev.ExpectedAnnualCost, minCost, maxCost) +
			s.weights.Overage*ev.OverageProbability +
			s.weights.Waste*ev.WasteProbability +
			s.weights.Volatility*normalize(ev.CostStd, minStd, maxStd)
		ev.Eligible = ev.OverageProbability <= s.ceiling
	}
	return scored
}

// Select scores the evaluations and returns the minimum-risk eligible
// candidate. Ties prefer the smallest candidate at or above safetyAnchorKW,
// then the smallest candidate. When no candidate meets the overage ceiling
// the minimum-overage candidate is chosen and the selection is marked
// degraded.
func (s *Selector) Select(evaluations []CandidateEvaluation, safetyAnchorKW float64, currentKW *float64) (*Selection, error) {
	if len(evaluations) == 0 {
		return nil, fmt.Errorf("%w: nothing to select from", common.ErrNoCandidates)
	}

	scored := s.Score(evaluations)

	pool := make([]int, 0, len(scored))
	for i, ev := range scored {
		if ev.Eligible {
			pool = append(pool, i)
		}
	}
	eligible := len(pool)
	degraded := eligible == 0

	if degraded {
		minOverage := math.Inf(1)
		for _, ev := range scored {
			minOverage = math.Min(minOverage, ev.OverageProbability)
		}
		for i, ev := range scored {
			if ev.OverageProbability == minOverage {
				pool = append(pool, i)
			}
		}
	}

	best := pool[0]
	for _, i := range pool[1:] {
		if s.better(scored[i], scored[best], safetyAnchorKW) {
			best = i
		}
	}
	selected := scored[best]

	if degraded {
		klog.InfoS("Degraded contract selection: every candidate exceeds the overage ceiling",
			"overageCeiling", s.ceiling,
			"selectedKW", selected.CandidateKW,
			"overageProbability", selected.OverageProbability,
			"candidates", len(scored))
	}

	if currentKW != nil {
		klog.V(3).InfoS("Selected contract candidate",
			"selectedKW", selected.CandidateKW,
			"currentKW", *currentKW,
			"riskScore", selected.RiskScore,
			"eligible", eligible)
	} else {
		klog.V(3).InfoS("Selected contract candidate",
			"selectedKW", selected.CandidateKW,
			"riskScore", selected.RiskScore,
			"eligible", eligible)
	}

	return &Selection{
		Selected:      selected,
		Evaluations:   scored,
		Degraded:      degraded,
		EligibleCount: eligible,
	}, nil
}

// better reports whether a should be preferred over b
func (s *Selector) better(a, b CandidateEvaluation, safetyAnchorKW float64) bool {
	if math.Abs(a.RiskScore-b.RiskScore) > s.tolerance {
		return a.RiskScore < b.RiskScore
	}
	aSafe := a.CandidateKW >= safetyAnchorKW
	bSafe := b.CandidateKW >= safetyAnchorKW
	if aSafe != bSafe {
		return aSafe
	}
	// Both on the same side of the anchor: the smaller one is closer when
	// above it, and cheaper when below it.
	return a.CandidateKW < b.CandidateKW
}

func normalize(v, lo, hi float64) float64 {
	if hi-lo <= 0 {
		return 0
	}
	return (v - lo) / (hi - lo)
}
