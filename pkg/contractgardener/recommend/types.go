package recommend

import (
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/distribution"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/optimizer"
)

// Urgency classifies how soon a contract change should be reviewed
type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// SubModelStatus reports how one predictive model contributed to the
// combined distribution
type SubModelStatus struct {
	Model        string  `json:"model"`
	Available    bool    `json:"available"`
	UsedFallback bool    `json:"used_fallback"`
	Weight       float64 `json:"weight"`
	SampleCount  int     `json:"sample_count"`
	Dropped      int     `json:"dropped_samples,omitempty"`
	Clipped      int     `json:"clipped_samples,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// ContractRecommendation is the externally consumed recommendation payload
type ContractRecommendation struct {
	SchemaVersion string `json:"schema_version"`
	StationID     string `json:"station_id"`

	RecommendedContractKW float64  `json:"recommended_contract_kw"`
	CurrentContractKW     *float64 `json:"current_contract_kw"`
	ExpectedAnnualCost    float64  `json:"expected_annual_cost"`
	// Savings are nil when the current contract is unknown
	ExpectedAnnualSavings *float64 `json:"expected_annual_savings"`
	SavingsPercent        *float64 `json:"savings_percent"`

	OverageProbability float64 `json:"overage_probability"`
	WasteProbability   float64 `json:"waste_probability"`
	ConfidenceLevel    float64 `json:"confidence_level"`

	RecommendationSummary string   `json:"recommendation_summary"`
	DetailedReasoning     []string `json:"detailed_reasoning"`
	ActionRequired        bool     `json:"action_required"`
	UrgencyLevel          Urgency  `json:"urgency_level"`

	AllCandidates     []optimizer.CandidateEvaluation `json:"all_candidates"`
	DistributionStats distribution.Stats              `json:"distribution_stats"`

	DegradedSelection       bool                           `json:"degraded_selection"`
	StationMaturity         string                         `json:"station_maturity,omitempty"`
	CurrentContractAnalysis *optimizer.CandidateEvaluation `json:"current_contract_analysis,omitempty"`
	SubModels               []SubModelStatus               `json:"sub_models,omitempty"`
}

// Input carries everything a recommendation is built from
type Input struct {
	StationID         string
	Result            *optimizer.Result
	CurrentContractKW *float64
	Confidence        float64
	Maturity          string
	SubModels         []SubModelStatus
}
