package recommend

import (
	"fmt"
	"math"

	"k8s.io/utils/ptr"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/optimizer"
)

// Synthesizer turns an optimization result into a ContractRecommendation.
// It performs no I/O and keeps no state.
type Synthesizer struct {
	thresholds config.RecommendationConfig
}

// NewSynthesizer creates a synthesizer using the given urgency thresholds
func NewSynthesizer(cfg config.RecommendationConfig) *Synthesizer {
	return &Synthesizer{thresholds: cfg}
}

// Synthesize builds the recommendation. The current contract analysis in the
// result is required whenever a current contract is given.
func (s *Synthesizer) Synthesize(in Input) (*ContractRecommendation, error) {
	if in.Result == nil {
		return nil, fmt.Errorf("%w: missing optimization result", common.ErrInvalidInput)
	}
	if len(in.Result.Evaluations) == 0 {
		return nil, fmt.Errorf("%w: optimization result has no candidates", common.ErrInvalidInput)
	}
	if err := in.Result.Stats.Validate(); err != nil {
		return nil, err
	}
	if math.IsNaN(in.Confidence) || in.Confidence < 0 || in.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence must be within [0, 1], got %v", common.ErrInvalidInput, in.Confidence)
	}

	selected := in.Result.Selected
	rec := &ContractRecommendation{
		SchemaVersion:         common.RecommendationSchemaVersion,
		StationID:             in.StationID,
		RecommendedContractKW: selected.CandidateKW,
		ExpectedAnnualCost:    selected.ExpectedAnnualCost,
		OverageProbability:    selected.OverageProbability,
		WasteProbability:      selected.WasteProbability,
		ConfidenceLevel:       in.Confidence,
		AllCandidates:         in.Result.Evaluations,
		DistributionStats:     in.Result.Stats,
		DegradedSelection:     in.Result.Degraded,
		StationMaturity:       in.Maturity,
		SubModels:             in.SubModels,
	}

	var current *optimizer.CandidateEvaluation
	if in.CurrentContractKW != nil {
		current = in.Result.Current
		if current == nil {
			return nil, fmt.Errorf("%w: current contract %v kW given without its analysis", common.ErrInvalidInput, *in.CurrentContractKW)
		}
		if current.CandidateKW != *in.CurrentContractKW {
			return nil, fmt.Errorf("%w: current contract analysis is for %v kW, not %v kW",
				common.ErrInvalidInput, current.CandidateKW, *in.CurrentContractKW)
		}

		savings := current.ExpectedAnnualCost - selected.ExpectedAnnualCost
		rec.CurrentContractKW = ptr.To(*in.CurrentContractKW)
		rec.CurrentContractAnalysis = current
		rec.ExpectedAnnualSavings = ptr.To(savings)
		if current.ExpectedAnnualCost > 0 {
			rec.SavingsPercent = ptr.To(savings / current.ExpectedAnnualCost * 100)
		}
	}

	rec.UrgencyLevel = s.classify(selected, current, in.Result.Degraded)
	rec.ActionRequired = rec.UrgencyLevel != UrgencyLow
	rec.RecommendationSummary = summary(rec)
	rec.DetailedReasoning = reasoning(rec, selected, current)

	return rec, nil
}

func (s *Synthesizer) classify(selected optimizer.CandidateEvaluation, current *optimizer.CandidateEvaluation, degraded bool) Urgency {
	if degraded {
		return UrgencyHigh
	}
	if current == nil {
		return UrgencyMedium
	}

	mismatch := math.Abs(current.CandidateKW-selected.CandidateKW) / current.CandidateKW
	switch {
	case mismatch >= s.thresholds.HighMismatchRatio || current.OverageProbability > s.thresholds.HighOverageRisk:
		return UrgencyHigh
	case mismatch >= s.thresholds.MediumMismatchRatio || current.OverageProbability > s.thresholds.MediumOverageRisk:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}
