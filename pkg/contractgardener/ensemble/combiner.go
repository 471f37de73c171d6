package ensemble

import (
	"fmt"
	"math"
	"sort"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/distribution"
)

// Combiner blends the sequence and tree model distributions with weights
// chosen by station maturity.
//
// Samples are combined index by index, treating the i-th draw of each model
// as the same scenario. This is a simplification, not a copula.
type Combiner struct {
	config config.EnsembleConfig
}

// NewCombiner creates a combiner for the given ensemble policy
func NewCombiner(cfg config.EnsembleConfig) *Combiner {
	return &Combiner{config: cfg}
}

type prepared struct {
	report  ModelReport
	samples []float64
}

// Combine produces the weighted ensemble distribution. A single unavailable
// model is replaced by a synthesized fallback; both unavailable is an error.
func (c *Combiner) Combine(req Request) (*Combined, error) {
	tier, err := ClassifyMaturity(req.SessionCount, c.config.Tiers)
	if err != nil {
		return nil, err
	}
	n := c.config.SampleCount
	if n < 1 {
		return nil, fmt.Errorf("%w: sample count must be positive, got %d", common.ErrInvalidParameter, n)
	}

	seed := c.config.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}
	rng := exprand.New(exprand.NewSource(seed))

	seq := c.prepare(common.ModelSequence, req.Sequence, tier.WeightSequence, n, rng)
	tree := c.prepare(common.ModelTree, req.Tree, tier.WeightTree, n, rng)

	if seq.samples == nil && tree.samples == nil {
		return nil, fmt.Errorf("%w: both predictive models are unavailable", common.ErrEmptyDistribution)
	}
	if seq.samples == nil {
		seq.samples = c.fallback(req.Sequence, tree.samples, n, rng)
		seq.report.UsedFallback = true
	}
	if tree.samples == nil {
		tree.samples = c.fallback(req.Tree, seq.samples, n, rng)
		tree.report.UsedFallback = true
	}

	combined := make([]float64, n)
	for i := range combined {
		combined[i] = tier.WeightSequence*seq.samples[i] + tier.WeightTree*tree.samples[i]
	}
	combined, clipped := distribution.ClipNonNegative(combined)

	d, err := distribution.New(combined)
	if err != nil {
		return nil, err
	}

	reports := []ModelReport{seq.report, tree.report}
	_, std := d.MeanStd()
	confidence := c.confidence(reports, tier, std)

	for _, r := range reports {
		if !r.Available {
			klog.V(2).InfoS("Predictive model unavailable, using fallback distribution",
				"model", r.Model,
				"error", r.Error,
				"sessionCount", req.SessionCount)
		}
	}
	if clipped > 0 {
		klog.V(2).InfoS("Clipped negative combined samples", "clipped", clipped, "samples", n)
	}
	klog.V(3).InfoS("Combined model distributions",
		"maturity", tier.Name,
		"weightSequence", tier.WeightSequence,
		"weightTree", tier.WeightTree,
		"samples", n,
		"confidence", confidence,
		"seed", seed)

	return &Combined{
		Distribution:  d,
		Maturity:      tier,
		Confidence:    confidence,
		Seed:          seed,
		Models:        reports,
		ClippedOutput: clipped,
	}, nil
}

// prepare sanitizes a model's output and matches it to n samples. The
// returned samples are nil when the model cannot contribute on its own.
func (c *Combiner) prepare(name string, out ModelOutput, weight float64, n int, rng *exprand.Rand) prepared {
	p := prepared{report: ModelReport{Model: name, Weight: weight, Error: out.Error}}
	if !out.Available {
		return p
	}

	clean, report := distribution.Sanitize(out.Samples)
	p.report.Dropped = report.Dropped
	p.report.Clipped = report.Clipped
	p.report.SampleCount = len(clean)

	switch {
	case len(clean) > 0:
		p.samples = matchLength(clean, n, rng)
	case out.PointKW != nil && isFinite(*out.PointKW):
		p.samples = synthesize(*out.PointKW, ptr.Deref(out.UncertaintyKW, 0), n, rng)
	default:
		if p.report.Error == "" {
			p.report.Error = "model reported no usable samples"
		}
		return p
	}

	if report.Modified() {
		klog.V(2).InfoS("Sanitized model samples",
			"model", name,
			"received", report.Received,
			"dropped", report.Dropped,
			"clipped", report.Clipped)
	}
	p.report.Available = true
	return p
}

// fallback synthesizes a normal spread around the model's own point estimate
// when it gave one, otherwise around the other model's mean and std.
func (c *Combiner) fallback(out ModelOutput, other []float64, n int, rng *exprand.Rand) []float64 {
	if out.PointKW != nil && isFinite(*out.PointKW) {
		return synthesize(*out.PointKW, ptr.Deref(out.UncertaintyKW, 0), n, rng)
	}
	mean, variance := stat.PopMeanVariance(other, nil)
	return synthesize(mean, math.Sqrt(math.Max(0, variance)), n, rng)
}

func (c *Combiner) confidence(reports []ModelReport, tier config.MaturityTier, std float64) float64 {
	score := tier.ConfidenceScore
	for _, r := range reports {
		if r.Available {
			score += c.config.AvailabilityScorePerModel
		}
	}

	bands := make([]config.SpreadBand, len(c.config.SpreadBands))
	copy(bands, c.config.SpreadBands)
	// Tightest matching band wins
	sort.SliceStable(bands, func(i, j int) bool {
		return bands[i].MaxStdKW < bands[j].MaxStdKW
	})
	for _, b := range bands {
		if std < b.MaxStdKW {
			score += b.Score
			break
		}
	}

	return math.Min(1, math.Max(0, score))
}

// matchLength truncates to n, or keeps every sample and fills the remainder
// by drawing with replacement.
func matchLength(samples []float64, n int, rng *exprand.Rand) []float64 {
	out := make([]float64, n)
	if len(samples) >= n {
		copy(out, samples[:n])
		return out
	}
	copy(out, samples)
	for i := len(samples); i < n; i++ {
		out[i] = samples[rng.Intn(len(samples))]
	}
	return out
}

// synthesize draws n samples from N(mean, std), or returns a constant when
// std is not positive.
func synthesize(mean, std float64, n int, rng *exprand.Rand) []float64 {
	out := make([]float64, n)
	if !(std > 0) || math.IsInf(std, 0) {
		for i := range out {
			out[i] = mean
		}
		return out
	}
	normal := distuv.Normal{Mu: mean, Sigma: std, Src: rng}
	for i := range out {
		out[i] = normal.Rand()
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
