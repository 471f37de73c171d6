package config

import (
	"fmt"
	"math"
	"sort"
	"time"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Config holds all configuration for the contract optimizer
type Config struct {
	Tariff         TariffConfig         `yaml:"tariff"`
	Optimizer      OptimizerConfig      `yaml:"optimizer"`
	Ensemble       EnsembleConfig       `yaml:"ensemble"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
	Models         ModelsConfig         `yaml:"models"`
	Store          StoreConfig          `yaml:"store"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// TariffConfig holds the two-tier demand tariff
type TariffConfig struct {
	BasicRatePerKW     float64 `yaml:"basicRatePerKW"`     // Currency units per contracted kW per billing cycle
	ShortageMultiplier float64 `yaml:"shortageMultiplier"` // Penalty multiplier on kW above the contract
}

// OptimizerConfig holds candidate generation, evaluation and selection policy
type OptimizerConfig struct {
	StepKW                float64     `yaml:"stepKW"`
	LowerAnchorPercentile float64     `yaml:"lowerAnchorPercentile"` // 0-1
	UpperAnchorPercentile float64     `yaml:"upperAnchorPercentile"` // 0-1
	PadKW                 float64     `yaml:"padKW"`
	DegenerateMarginRatio float64     `yaml:"degenerateMarginRatio"`
	DegenerateMinSteps    int         `yaml:"degenerateMinSteps"`
	MaxCandidates         int         `yaml:"maxCandidates"`
	WasteThresholdRatio   float64     `yaml:"wasteThresholdRatio"`
	OverageCeiling        float64     `yaml:"overageCeiling"`
	SafetyPercentile      float64     `yaml:"safetyPercentile"`
	TieTolerance          float64     `yaml:"tieTolerance"`
	Weights               RiskWeights `yaml:"weights"`
	Workers               int         `yaml:"workers"` // Parallel candidate evaluations, 1 = sequential
}

// RiskWeights weight the components of a candidate's risk score
type RiskWeights struct {
	Cost       float64 `yaml:"cost"`
	Overage    float64 `yaml:"overage"`
	Waste      float64 `yaml:"waste"`
	Volatility float64 `yaml:"volatility"`
}

// Sum returns the total of all weights
func (w RiskWeights) Sum() float64 {
	return w.Cost + w.Overage + w.Waste + w.Volatility
}

// EnsembleConfig holds the sub-model combination policy
type EnsembleConfig struct {
	SampleCount int            `yaml:"sampleCount"` // Length both sub-model distributions are matched to
	Seed        uint64         `yaml:"seed"`        // Default seed when a request carries none
	Tiers       []MaturityTier `yaml:"tiers"`
	// Confidence contributions
	AvailabilityScorePerModel float64      `yaml:"availabilityScorePerModel"`
	SpreadBands               []SpreadBand `yaml:"spreadBands"`
}

// MaturityTier maps a session-count threshold to sub-model weights
type MaturityTier struct {
	Name            string  `yaml:"name"`
	MinSessions     int     `yaml:"minSessions"`
	WeightSequence  float64 `yaml:"weightSequence"`
	WeightTree      float64 `yaml:"weightTree"`
	ConfidenceScore float64 `yaml:"confidenceScore"`
}

// SpreadBand awards confidence when the combined std is below MaxStdKW
type SpreadBand struct {
	MaxStdKW float64 `yaml:"maxStdKW"`
	Score    float64 `yaml:"score"`
}

// RecommendationConfig holds urgency classification thresholds
type RecommendationConfig struct {
	HighMismatchRatio   float64 `yaml:"highMismatchRatio"`
	MediumMismatchRatio float64 `yaml:"mediumMismatchRatio"`
	HighOverageRisk     float64 `yaml:"highOverageRisk"`
	MediumOverageRisk   float64 `yaml:"mediumOverageRisk"`
}

// ModelsConfig holds settings for calling the external predictive models
type ModelsConfig struct {
	SequenceURL string        `yaml:"sequenceUrl"`
	TreeURL     string        `yaml:"treeUrl"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"maxRetries"`
	RetryDelay  time.Duration `yaml:"retryDelay"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	MaxCacheAge time.Duration `yaml:"maxCacheAge"`
}

// StoreConfig holds recommendation audit-log settings
type StoreConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DatabasePath  string `yaml:"databasePath"` // SQLite path, empty selects the JSON file store
	DataDir       string `yaml:"dataDir"`
	RetentionDays int    `yaml:"retentionDays"`
}

// ObservabilityConfig holds configuration for serving and monitoring
type ObservabilityConfig struct {
	ListenPort     int    `yaml:"listenPort"`
	MetricsEnabled bool   `yaml:"metricsEnabled"`
	LogLevel       string `yaml:"logLevel"`
}

// SortedTiers returns the maturity tiers ordered by ascending threshold
func (e EnsembleConfig) SortedTiers() []MaturityTier {
	tiers := make([]MaturityTier, len(e.Tiers))
	copy(tiers, e.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinSessions < tiers[j].MinSessions
	})
	return tiers
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	var errs field.ErrorList
	errs = append(errs, c.Tariff.validate(field.NewPath("tariff"))...)
	errs = append(errs, c.Optimizer.validate(field.NewPath("optimizer"))...)
	errs = append(errs, c.Ensemble.validate(field.NewPath("ensemble"))...)
	errs = append(errs, c.Recommendation.validate(field.NewPath("recommendation"))...)
	errs = append(errs, c.Store.validate(field.NewPath("store"))...)
	return errs.ToAggregate()
}

func (t TariffConfig) validate(path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if !positive(t.BasicRatePerKW) {
		errs = append(errs, field.Invalid(path.Child("basicRatePerKW"), t.BasicRatePerKW, "must be positive"))
	}
	if !(t.ShortageMultiplier >= 1) {
		errs = append(errs, field.Invalid(path.Child("shortageMultiplier"), t.ShortageMultiplier, "must be at least 1"))
	}
	return errs
}

func (o OptimizerConfig) validate(path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if !positive(o.StepKW) {
		errs = append(errs, field.Invalid(path.Child("stepKW"), o.StepKW, "must be positive"))
	}
	if !fraction(o.LowerAnchorPercentile) {
		errs = append(errs, field.Invalid(path.Child("lowerAnchorPercentile"), o.LowerAnchorPercentile, "must be within [0, 1]"))
	}
	if !fraction(o.UpperAnchorPercentile) || o.UpperAnchorPercentile < o.LowerAnchorPercentile {
		errs = append(errs, field.Invalid(path.Child("upperAnchorPercentile"), o.UpperAnchorPercentile, "must be within [lowerAnchorPercentile, 1]"))
	}
	if o.PadKW < 0 {
		errs = append(errs, field.Invalid(path.Child("padKW"), o.PadKW, "must be non-negative"))
	}
	if !positive(o.DegenerateMarginRatio) {
		errs = append(errs, field.Invalid(path.Child("degenerateMarginRatio"), o.DegenerateMarginRatio, "must be positive"))
	}
	if o.DegenerateMinSteps < 1 {
		errs = append(errs, field.Invalid(path.Child("degenerateMinSteps"), o.DegenerateMinSteps, "must be at least 1"))
	}
	if o.MaxCandidates < 1 {
		errs = append(errs, field.Invalid(path.Child("maxCandidates"), o.MaxCandidates, "must be at least 1"))
	}
	if !positive(o.WasteThresholdRatio) || o.WasteThresholdRatio > 1 {
		errs = append(errs, field.Invalid(path.Child("wasteThresholdRatio"), o.WasteThresholdRatio, "must be within (0, 1]"))
	}
	if !fraction(o.OverageCeiling) {
		errs = append(errs, field.Invalid(path.Child("overageCeiling"), o.OverageCeiling, "must be within [0, 1]"))
	}
	if !fraction(o.SafetyPercentile) {
		errs = append(errs, field.Invalid(path.Child("safetyPercentile"), o.SafetyPercentile, "must be within [0, 1]"))
	}
	if o.TieTolerance < 0 {
		errs = append(errs, field.Invalid(path.Child("tieTolerance"), o.TieTolerance, "must be non-negative"))
	}
	weightsPath := path.Child("weights")
	for name, w := range map[string]float64{
		"cost": o.Weights.Cost, "overage": o.Weights.Overage, "waste": o.Weights.Waste, "volatility": o.Weights.Volatility,
	} {
		if w < 0 || math.IsNaN(w) {
			errs = append(errs, field.Invalid(weightsPath.Child(name), w, "must be non-negative"))
		}
	}
	if sum := o.Weights.Sum(); math.Abs(sum-1) > 1e-6 {
		errs = append(errs, field.Invalid(weightsPath, sum, "weights must sum to 1"))
	}
	if o.Workers < 1 {
		errs = append(errs, field.Invalid(path.Child("workers"), o.Workers, "must be at least 1"))
	}
	return errs
}

func (e EnsembleConfig) validate(path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if e.SampleCount < 1 {
		errs = append(errs, field.Invalid(path.Child("sampleCount"), e.SampleCount, "must be at least 1"))
	}
	if len(e.Tiers) == 0 {
		errs = append(errs, field.Required(path.Child("tiers"), "at least one maturity tier is required"))
	}
	seen := make(map[int]bool)
	hasZero := false
	for i, tier := range e.Tiers {
		tierPath := path.Child("tiers").Index(i)
		if tier.Name == "" {
			errs = append(errs, field.Required(tierPath.Child("name"), ""))
		}
		if tier.MinSessions < 0 {
			errs = append(errs, field.Invalid(tierPath.Child("minSessions"), tier.MinSessions, "must be non-negative"))
		}
		if tier.MinSessions == 0 {
			hasZero = true
		}
		if seen[tier.MinSessions] {
			errs = append(errs, field.Duplicate(tierPath.Child("minSessions"), tier.MinSessions))
		}
		seen[tier.MinSessions] = true
		if tier.WeightSequence < 0 || tier.WeightTree < 0 || math.Abs(tier.WeightSequence+tier.WeightTree-1) > 1e-6 {
			errs = append(errs, field.Invalid(tierPath, fmt.Sprintf("%v/%v", tier.WeightSequence, tier.WeightTree),
				"sub-model weights must be non-negative and sum to 1"))
		}
		if !fraction(tier.ConfidenceScore) {
			errs = append(errs, field.Invalid(tierPath.Child("confidenceScore"), tier.ConfidenceScore, "must be within [0, 1]"))
		}
	}
	if len(e.Tiers) > 0 && !hasZero {
		errs = append(errs, field.Invalid(path.Child("tiers"), len(e.Tiers), "one tier must start at 0 sessions"))
	}
	if !fraction(e.AvailabilityScorePerModel) {
		errs = append(errs, field.Invalid(path.Child("availabilityScorePerModel"), e.AvailabilityScorePerModel, "must be within [0, 1]"))
	}
	for i, band := range e.SpreadBands {
		if !positive(band.MaxStdKW) || !fraction(band.Score) {
			errs = append(errs, field.Invalid(path.Child("spreadBands").Index(i), band, "maxStdKW must be positive and score within [0, 1]"))
		}
	}
	return errs
}

func (r RecommendationConfig) validate(path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if !positive(r.MediumMismatchRatio) || r.HighMismatchRatio < r.MediumMismatchRatio {
		errs = append(errs, field.Invalid(path.Child("mediumMismatchRatio"), r.MediumMismatchRatio, "must be positive and not above highMismatchRatio"))
	}
	if !fraction(r.MediumOverageRisk) || !fraction(r.HighOverageRisk) || r.HighOverageRisk < r.MediumOverageRisk {
		errs = append(errs, field.Invalid(path.Child("highOverageRisk"), r.HighOverageRisk, "overage risks must be within [0, 1] with high >= medium"))
	}
	return errs
}

func (s StoreConfig) validate(path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if s.Enabled && s.DatabasePath == "" && s.DataDir == "" {
		errs = append(errs, field.Required(path.Child("databasePath"), "databasePath or dataDir is required when the store is enabled"))
	}
	if s.RetentionDays < 0 {
		errs = append(errs, field.Invalid(path.Child("retentionDays"), s.RetentionDays, "must be non-negative"))
	}
	return errs
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func fraction(v float64) bool {
	return v >= 0 && v <= 1
}
