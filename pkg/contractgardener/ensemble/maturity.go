package ensemble

import (
	"fmt"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
)

// Maturity tier names of the reference policy
const (
	MaturityNew        = "NEW"
	MaturityDeveloping = "DEVELOPING"
	MaturityMature     = "MATURE"
)

// ClassifyMaturity returns the highest tier whose threshold the session count
// reaches. Tiers need not be sorted.
func ClassifyMaturity(sessionCount int, tiers []config.MaturityTier) (config.MaturityTier, error) {
	if sessionCount < 0 {
		return config.MaturityTier{}, fmt.Errorf("%w: session count must be non-negative, got %d", common.ErrInvalidParameter, sessionCount)
	}
	if len(tiers) == 0 {
		return config.MaturityTier{}, fmt.Errorf("%w: no maturity tiers configured", common.ErrInvalidParameter)
	}

	sorted := config.EnsembleConfig{Tiers: tiers}.SortedTiers()
	tier := sorted[0]
	for _, t := range sorted[1:] {
		if sessionCount >= t.MinSessions {
			tier = t
		}
	}
	return tier, nil
}
