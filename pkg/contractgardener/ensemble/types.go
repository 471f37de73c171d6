package ensemble

import (
	"context"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/distribution"
)

// ModelOutput is what a predictive model reports for one station. Samples
// are preferred; a point estimate with uncertainty is used to synthesize a
// distribution when samples are missing. For an unavailable model the point
// estimate, when given, seeds the fallback distribution.
type ModelOutput struct {
	Available     bool      `json:"available"`
	Samples       []float64 `json:"samples,omitempty"`
	PointKW       *float64  `json:"point_estimate_kw,omitempty"`
	UncertaintyKW *float64  `json:"uncertainty_kw,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Predictor produces a peak power prediction for a station
type Predictor interface {
	Predict(ctx context.Context, stationID string) (*ModelOutput, error)
}

// Request is the input to one combination
type Request struct {
	Sequence     ModelOutput
	Tree         ModelOutput
	SessionCount int
	// Seed drives all resampling and fallback synthesis; nil uses the
	// configured default
	Seed *uint64
}

// ModelReport describes how one model contributed to the combination
type ModelReport struct {
	Model        string
	Available    bool
	UsedFallback bool
	Weight       float64
	SampleCount  int // Usable samples received
	Dropped      int // Non-finite samples removed
	Clipped      int // Negative samples raised to zero
	Error        string
}

// Combined is the ensemble distribution with its confidence
type Combined struct {
	Distribution *distribution.Distribution
	Maturity     config.MaturityTier
	Confidence   float64
	Seed         uint64
	Models       []ModelReport
	// ClippedOutput counts combined samples raised to zero
	ClippedOutput int
}
