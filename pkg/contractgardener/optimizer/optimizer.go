package optimizer

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/distribution"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/tariff"
)

// Optimizer chains candidate generation, Monte Carlo evaluation and risk
// selection. It holds no per-run state and is safe for concurrent use.
type Optimizer struct {
	config    config.OptimizerConfig
	evaluator *Evaluator
	selector  *Selector
}

// New creates an optimizer for a tariff and policy
func New(t *tariff.Model, cfg config.OptimizerConfig) *Optimizer {
	return &Optimizer{
		config:    cfg,
		evaluator: NewEvaluator(t, cfg),
		selector:  NewSelector(cfg),
	}
}

// Optimize picks a contract value for the distribution. currentKW, when set,
// is evaluated against the same distribution and returned in Result.Current.
func (o *Optimizer) Optimize(ctx context.Context, d *distribution.Distribution, currentKW *float64) (*Result, error) {
	if d == nil || d.Len() == 0 {
		return nil, fmt.Errorf("%w: cannot optimize", common.ErrEmptyDistribution)
	}
	if currentKW != nil && !(*currentKW > 0) {
		return nil, fmt.Errorf("%w: current contract must be positive, got %v kW", common.ErrInvalidParameter, *currentKW)
	}

	candidates, err := GenerateCandidates(d, o.config)
	if err != nil {
		return nil, err
	}

	evaluations, err := o.evaluator.Evaluate(ctx, candidates, d)
	if err != nil {
		return nil, err
	}

	anchor, err := d.Percentile(o.config.SafetyPercentile)
	if err != nil {
		return nil, err
	}

	selection, err := o.selector.Select(evaluations, anchor, currentKW)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Selected:       selection.Selected,
		Evaluations:    selection.Evaluations,
		Stats:          d.Stats(),
		Degraded:       selection.Degraded,
		SafetyAnchorKW: anchor,
	}

	if currentKW != nil {
		current, err := o.evaluator.EvaluateCandidate(*currentKW, d)
		if err != nil {
			return nil, err
		}
		// Reuse the scored entry when the current contract is on the grid
		for _, ev := range selection.Evaluations {
			if ev.CandidateKW == *currentKW {
				current = ev
				break
			}
		}
		current.Eligible = current.OverageProbability <= o.config.OverageCeiling
		result.Current = &current
	}

	klog.V(2).InfoS("Contract optimization complete",
		"samples", d.Len(),
		"candidates", len(candidates),
		"rangeLowKW", candidates[0],
		"rangeHighKW", candidates[len(candidates)-1],
		"selectedKW", result.Selected.CandidateKW,
		"expectedAnnualCost", result.Selected.ExpectedAnnualCost,
		"overageProbability", result.Selected.OverageProbability,
		"degraded", result.Degraded)

	return result, nil
}
