package recommend

import (
	"fmt"
	"math"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/optimizer"
)

func summary(rec *ContractRecommendation) string {
	if rec.DegradedSelection {
		return fmt.Sprintf("Set contract power to %.0f kW: no candidate keeps overage risk within the allowed ceiling, this is the lowest-overage option (%.1f%%)",
			rec.RecommendedContractKW, rec.OverageProbability*100)
	}
	if rec.CurrentContractKW == nil {
		return fmt.Sprintf("Set contract power to %.0f kW (expected annual cost %.0f)",
			rec.RecommendedContractKW, rec.ExpectedAnnualCost)
	}

	current := *rec.CurrentContractKW
	savings := *rec.ExpectedAnnualSavings
	switch {
	case rec.RecommendedContractKW == current:
		return fmt.Sprintf("Keep contract power at %.0f kW", current)
	case savings >= 0:
		return fmt.Sprintf("Change contract power from %.0f kW to %.0f kW, saving %.0f per year",
			current, rec.RecommendedContractKW, savings)
	default:
		return fmt.Sprintf("Change contract power from %.0f kW to %.0f kW to cut overage risk, costing %.0f more per year",
			current, rec.RecommendedContractKW, -savings)
	}
}

// reasoning only states numbers carried by the recommendation itself
func reasoning(rec *ContractRecommendation, selected optimizer.CandidateEvaluation, current *optimizer.CandidateEvaluation) []string {
	stats := rec.DistributionStats
	lines := []string{
		fmt.Sprintf("Analyzed %d predicted peak samples: mean %.1f kW, std %.1f kW, p50 %.1f kW, p95 %.1f kW",
			stats.Count, stats.Mean, stats.Std, stats.P50, stats.P95),
	}

	if n := len(rec.AllCandidates); n > 0 {
		lines = append(lines, fmt.Sprintf("Evaluated %d contract candidates from %.0f kW to %.0f kW",
			n, rec.AllCandidates[0].CandidateKW, rec.AllCandidates[n-1].CandidateKW))
	}

	lines = append(lines,
		fmt.Sprintf("Recommended %.0f kW: expected annual cost %.0f (std %.0f), risk score %.3f",
			selected.CandidateKW, selected.ExpectedAnnualCost, selected.CostStd, selected.RiskScore),
		fmt.Sprintf("Overage probability %.1f%%, waste probability %.1f%%",
			selected.OverageProbability*100, selected.WasteProbability*100),
	)

	if rec.DegradedSelection {
		lines = append(lines, "Degraded selection: every candidate exceeds the overage probability ceiling, the minimum-overage candidate was chosen")
	}

	if current != nil {
		lines = append(lines, fmt.Sprintf("Current contract %.0f kW: expected annual cost %.0f, overage probability %.1f%%",
			current.CandidateKW, current.ExpectedAnnualCost, current.OverageProbability*100))
		if rec.ExpectedAnnualSavings != nil {
			line := fmt.Sprintf("Expected annual savings %.0f", *rec.ExpectedAnnualSavings)
			if rec.SavingsPercent != nil {
				line += fmt.Sprintf(" (%.1f%%)", *rec.SavingsPercent)
			}
			lines = append(lines, line)
		}
		mismatch := math.Abs(current.CandidateKW-selected.CandidateKW) / current.CandidateKW
		lines = append(lines, fmt.Sprintf("Urgency %s: recommendation differs from the current contract by %.1f%%",
			rec.UrgencyLevel, mismatch*100))
	} else {
		lines = append(lines, fmt.Sprintf("Urgency %s: no current contract to compare against", rec.UrgencyLevel))
	}

	maturity := ""
	if rec.StationMaturity != "" {
		maturity = fmt.Sprintf(", station maturity %s", rec.StationMaturity)
	}
	lines = append(lines, fmt.Sprintf("Prediction confidence %.2f%s", rec.ConfidenceLevel, maturity))

	for _, sm := range rec.SubModels {
		if !sm.Available {
			lines = append(lines, fmt.Sprintf("Model %s was unavailable, a fallback estimate was used", sm.Model))
		}
	}

	return lines
}
