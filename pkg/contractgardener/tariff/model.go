package tariff

import (
	"fmt"
	"math"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
)

// Model is the two-tier demand tariff: a basic charge per contracted kW plus a
// penalty on every kW of realized peak above the contract.
type Model struct {
	BasicRatePerKW     float64
	ShortageMultiplier float64
}

// New creates a tariff model and validates its rates
func New(basicRatePerKW, shortageMultiplier float64) (*Model, error) {
	if !(basicRatePerKW > 0) || math.IsInf(basicRatePerKW, 0) {
		return nil, fmt.Errorf("%w: basic rate must be positive, got %v", common.ErrInvalidParameter, basicRatePerKW)
	}
	if !(shortageMultiplier >= 1) || math.IsInf(shortageMultiplier, 0) {
		return nil, fmt.Errorf("%w: shortage multiplier must be at least 1, got %v", common.ErrInvalidParameter, shortageMultiplier)
	}
	return &Model{
		BasicRatePerKW:     basicRatePerKW,
		ShortageMultiplier: shortageMultiplier,
	}, nil
}

// Default returns the reference tariff
func Default() *Model {
	return &Model{
		BasicRatePerKW:     common.DefaultBasicRatePerKW,
		ShortageMultiplier: common.DefaultShortageMultiplier,
	}
}

// Cost returns the billing cost of one cycle for a contract and a realized peak
func (m *Model) Cost(contractKW, peakKW float64) (float64, error) {
	if !(contractKW > 0) || math.IsInf(contractKW, 0) {
		return 0, fmt.Errorf("%w: contract must be positive, got %v kW", common.ErrInvalidParameter, contractKW)
	}
	if !(peakKW >= 0) || math.IsInf(peakKW, 0) {
		return 0, fmt.Errorf("%w: realized peak must be non-negative, got %v kW", common.ErrInvalidParameter, peakKW)
	}
	return m.cost(contractKW, peakKW), nil
}

// AnnualCost repeats the single-cycle cost for every month of the year. Only
// static display estimates use this shortcut; Monte Carlo evaluation applies
// it per sample.
func (m *Model) AnnualCost(contractKW, peakKW float64) (float64, error) {
	monthly, err := m.Cost(contractKW, peakKW)
	if err != nil {
		return 0, err
	}
	return monthly * common.MonthsPerYear, nil
}

// Breakdown splits the cycle cost into its basic and overage parts
func (m *Model) Breakdown(contractKW, peakKW float64) (basic, overage float64, err error) {
	if _, err := m.Cost(contractKW, peakKW); err != nil {
		return 0, 0, err
	}
	basic = contractKW * m.BasicRatePerKW
	if peakKW > contractKW {
		overage = (peakKW - contractKW) * m.BasicRatePerKW * m.ShortageMultiplier
	}
	return basic, overage, nil
}

// cost skips validation; callers must have checked contract > 0 and peak >= 0
func (m *Model) cost(contractKW, peakKW float64) float64 {
	total := contractKW * m.BasicRatePerKW
	if peakKW > contractKW {
		total += (peakKW - contractKW) * m.BasicRatePerKW * m.ShortageMultiplier
	}
	return total
}

// UncheckedAnnualCost is the hot-loop variant used by the Monte Carlo evaluator
// once the contract and every sample have been validated.
func (m *Model) UncheckedAnnualCost(contractKW, peakKW float64) float64 {
	return m.cost(contractKW, peakKW) * common.MonthsPerYear
}
