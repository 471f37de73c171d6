package optimizer

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/distribution"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/tariff"
)

// Evaluator simulates the annual cost of contract candidates over every
// sample of a prediction distribution.
//
// Annual cost per sample is the single-cycle cost repeated for twelve months,
// not twelve independent monthly draws. This keeps each sample's outcome
// deterministic and the expectation ordering consistent across candidates, at
// the price of overstating annual cost variance.
type Evaluator struct {
	tariff     *tariff.Model
	wasteRatio float64
	workers    int
}

// NewEvaluator creates a Monte Carlo evaluator
func NewEvaluator(t *tariff.Model, cfg config.OptimizerConfig) *Evaluator {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Evaluator{
		tariff:     t,
		wasteRatio: cfg.WasteThresholdRatio,
		workers:    workers,
	}
}

// Evaluate returns one evaluation per candidate, in input order. Candidates
// are evaluated in parallel; results are identical to sequential evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, candidates []float64, d *distribution.Distribution) ([]CandidateEvaluation, error) {
	if d == nil || d.Len() == 0 {
		return nil, fmt.Errorf("%w: cannot evaluate candidates", common.ErrEmptyDistribution)
	}

	results := make([]CandidateEvaluation, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, candidate := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			evaluation, err := e.EvaluateCandidate(candidate, d)
			if err != nil {
				return err
			}
			results[i] = evaluation
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	klog.V(4).InfoS("Evaluated contract candidates",
		"candidates", len(candidates),
		"samples", d.Len(),
		"workers", e.workers)

	return results, nil
}

// EvaluateCandidate simulates a single contract value
func (e *Evaluator) EvaluateCandidate(contractKW float64, d *distribution.Distribution) (CandidateEvaluation, error) {
	if d == nil || d.Len() == 0 {
		return CandidateEvaluation{}, fmt.Errorf("%w: cannot evaluate candidate", common.ErrEmptyDistribution)
	}
	if !(contractKW > 0) || math.IsInf(contractKW, 0) {
		return CandidateEvaluation{}, fmt.Errorf("%w: contract must be positive, got %v kW", common.ErrInvalidParameter, contractKW)
	}

	n := d.Len()
	costs := make([]float64, n)
	wasteLine := contractKW * e.wasteRatio
	overage, waste := 0, 0

	for i := 0; i < n; i++ {
		peak := d.At(i)
		costs[i] = e.tariff.UncheckedAnnualCost(contractKW, peak)
		if peak > contractKW {
			overage++
		}
		if peak < wasteLine {
			waste++
		}
	}

	mean, variance := stat.PopMeanVariance(costs, nil)

	return CandidateEvaluation{
		CandidateKW:        contractKW,
		ExpectedAnnualCost: mean,
		CostStd:            math.Sqrt(math.Max(0, variance)),
		OverageProbability: float64(overage) / float64(n),
		WasteProbability:   float64(waste) / float64(n),
	}, nil
}
