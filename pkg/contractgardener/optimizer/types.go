package optimizer

import (
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/distribution"
)

// CandidateEvaluation is the Monte Carlo outcome for one contract candidate
type CandidateEvaluation struct {
	CandidateKW        float64 `json:"candidate_kw"`
	ExpectedAnnualCost float64 `json:"expected_annual_cost"`
	CostStd            float64 `json:"cost_std"`
	OverageProbability float64 `json:"overage_probability"` // P[peak > candidate]
	WasteProbability   float64 `json:"waste_probability"`   // P[peak < candidate * waste ratio]
	RiskScore          float64 `json:"risk_score"`
	Eligible           bool    `json:"eligible"` // Overage probability within the ceiling
}

// Selection is the scorer's verdict over one evaluated candidate set
type Selection struct {
	Selected      CandidateEvaluation
	Evaluations   []CandidateEvaluation // Scored, in candidate order
	Degraded      bool                  // No candidate met the overage ceiling
	EligibleCount int
}

// Result is the full output of one optimization run
type Result struct {
	Selected    CandidateEvaluation   `json:"selected"`
	Evaluations []CandidateEvaluation `json:"all_candidates"`
	Stats       distribution.Stats    `json:"distribution_stats"`
	Degraded    bool                  `json:"degraded_selection"`
	// Current is the evaluation of the current contract against the same
	// distribution, nil when the current contract is unknown
	Current *CandidateEvaluation `json:"current_contract_analysis,omitempty"`
	// SafetyAnchorKW is the percentile used for tie-breaking
	SafetyAnchorKW float64 `json:"safety_anchor_kw"`
}
