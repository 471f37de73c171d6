package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
)

// Default returns the reference configuration
func Default() *Config {
	return &Config{
		Tariff: TariffConfig{
			BasicRatePerKW:     common.DefaultBasicRatePerKW,
			ShortageMultiplier: common.DefaultShortageMultiplier,
		},
		Optimizer: OptimizerConfig{
			StepKW:                common.DefaultStepKW,
			LowerAnchorPercentile: common.DefaultLowerAnchorPercentile,
			UpperAnchorPercentile: common.DefaultUpperAnchorPercentile,
			PadKW:                 common.DefaultCandidatePadKW,
			DegenerateMarginRatio: common.DefaultDegenerateMarginRatio,
			DegenerateMinSteps:    common.DefaultDegenerateMinSteps,
			MaxCandidates:         2000,
			WasteThresholdRatio:   common.DefaultWasteThresholdRatio,
			OverageCeiling:        common.DefaultOverageCeiling,
			SafetyPercentile:      common.DefaultSafetyPercentile,
			TieTolerance:          common.DefaultTieTolerance,
			Weights: RiskWeights{
				Cost:       common.DefaultCostWeight,
				Overage:    common.DefaultOverageWeight,
				Waste:      common.DefaultWasteWeight,
				Volatility: common.DefaultVolatilityWeight,
			},
			Workers: 4,
		},
		Ensemble: EnsembleConfig{
			SampleCount: common.DefaultEnsembleSampleCount,
			Seed:        42,
			Tiers: []MaturityTier{
				{Name: "NEW", MinSessions: 0, WeightSequence: 0.3, WeightTree: 0.7, ConfidenceScore: 0.1},
				{Name: "DEVELOPING", MinSessions: common.DefaultDevelopingSessions, WeightSequence: 0.5, WeightTree: 0.5, ConfidenceScore: 0.25},
				{Name: "MATURE", MinSessions: common.DefaultMatureSessions, WeightSequence: 0.6, WeightTree: 0.4, ConfidenceScore: 0.4},
			},
			AvailabilityScorePerModel: 0.15,
			SpreadBands: []SpreadBand{
				{MaxStdKW: 10, Score: 0.3},
				{MaxStdKW: 20, Score: 0.2},
				{MaxStdKW: 30, Score: 0.1},
			},
		},
		Recommendation: RecommendationConfig{
			HighMismatchRatio:   common.DefaultHighMismatchRatio,
			MediumMismatchRatio: common.DefaultMediumMismatchRatio,
			HighOverageRisk:     common.DefaultHighOverageRisk,
			MediumOverageRisk:   common.DefaultMediumOverageRisk,
		},
		Models: ModelsConfig{
			Timeout:     10 * time.Second,
			MaxRetries:  2,
			RetryDelay:  500 * time.Millisecond,
			CacheTTL:    15 * time.Minute,
			MaxCacheAge: time.Hour,
		},
		Store: StoreConfig{
			Enabled:       false,
			DataDir:       "/tmp/contract-gardener",
			RetentionDays: 730,
		},
		Observability: ObservabilityConfig{
			ListenPort:     8080,
			MetricsEnabled: true,
			LogLevel:       "info",
		},
	}
}

// Load reads an optional YAML file over the defaults, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	klog.V(2).InfoS("Loaded configuration",
		"configFile", path,
		"basicRatePerKW", cfg.Tariff.BasicRatePerKW,
		"shortageMultiplier", cfg.Tariff.ShortageMultiplier,
		"stepKW", cfg.Optimizer.StepKW,
		"overageCeiling", cfg.Optimizer.OverageCeiling,
		"sampleCount", cfg.Ensemble.SampleCount,
		"storeEnabled", cfg.Store.Enabled)

	return cfg, nil
}

// LoadFromEnv loads the defaults with environment overrides only
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func applyEnv(cfg *Config) {
	cfg.Tariff.BasicRatePerKW = getFloatOrDefault("TARIFF_BASIC_RATE_PER_KW", cfg.Tariff.BasicRatePerKW)
	cfg.Tariff.ShortageMultiplier = getFloatOrDefault("TARIFF_SHORTAGE_MULTIPLIER", cfg.Tariff.ShortageMultiplier)

	cfg.Optimizer.StepKW = getFloatOrDefault("OPTIMIZER_STEP_KW", cfg.Optimizer.StepKW)
	cfg.Optimizer.PadKW = getFloatOrDefault("OPTIMIZER_PAD_KW", cfg.Optimizer.PadKW)
	cfg.Optimizer.WasteThresholdRatio = getFloatOrDefault("OPTIMIZER_WASTE_THRESHOLD_RATIO", cfg.Optimizer.WasteThresholdRatio)
	cfg.Optimizer.OverageCeiling = getFloatOrDefault("OPTIMIZER_OVERAGE_CEILING", cfg.Optimizer.OverageCeiling)
	cfg.Optimizer.Weights.Cost = getFloatOrDefault("RISK_WEIGHT_COST", cfg.Optimizer.Weights.Cost)
	cfg.Optimizer.Weights.Overage = getFloatOrDefault("RISK_WEIGHT_OVERAGE", cfg.Optimizer.Weights.Overage)
	cfg.Optimizer.Weights.Waste = getFloatOrDefault("RISK_WEIGHT_WASTE", cfg.Optimizer.Weights.Waste)
	cfg.Optimizer.Weights.Volatility = getFloatOrDefault("RISK_WEIGHT_VOLATILITY", cfg.Optimizer.Weights.Volatility)
	cfg.Optimizer.Workers = getIntOrDefault("OPTIMIZER_WORKERS", cfg.Optimizer.Workers)

	cfg.Ensemble.SampleCount = getIntOrDefault("ENSEMBLE_SAMPLE_COUNT", cfg.Ensemble.SampleCount)
	cfg.Ensemble.Seed = getUintOrDefault("ENSEMBLE_SEED", cfg.Ensemble.Seed)

	cfg.Models.SequenceURL = getEnvOrDefault("SEQUENCE_MODEL_URL", cfg.Models.SequenceURL)
	cfg.Models.TreeURL = getEnvOrDefault("TREE_MODEL_URL", cfg.Models.TreeURL)
	cfg.Models.Timeout = getDurationOrDefault("MODEL_TIMEOUT", cfg.Models.Timeout)
	cfg.Models.MaxRetries = getIntOrDefault("MODEL_MAX_RETRIES", cfg.Models.MaxRetries)
	cfg.Models.RetryDelay = getDurationOrDefault("MODEL_RETRY_DELAY", cfg.Models.RetryDelay)
	cfg.Models.CacheTTL = getDurationOrDefault("MODEL_CACHE_TTL", cfg.Models.CacheTTL)

	cfg.Store.Enabled = getBoolOrDefault("STORE_ENABLED", cfg.Store.Enabled)
	cfg.Store.DatabasePath = getEnvOrDefault("STORE_DATABASE_PATH", cfg.Store.DatabasePath)
	cfg.Store.DataDir = getEnvOrDefault("STORE_DATA_DIR", cfg.Store.DataDir)
	cfg.Store.RetentionDays = getIntOrDefault("STORE_RETENTION_DAYS", cfg.Store.RetentionDays)

	cfg.Observability.ListenPort = getIntOrDefault("LISTEN_PORT", cfg.Observability.ListenPort)
	cfg.Observability.MetricsEnabled = getBoolOrDefault("METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.Observability.LogLevel)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.Atoi(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid integer value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getUintOrDefault(key string, defaultValue uint64) uint64 {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseUint(strValue, 10, 64); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid unsigned integer value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseFloat(strValue, 64); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid float value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if strValue := os.Getenv(key); strValue != "" {
		value, err := strconv.ParseBool(strValue)
		if err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid boolean value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := time.ParseDuration(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid duration value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}
