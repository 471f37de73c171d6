package common

// Reference tariff and policy values used when no configuration overrides them
const (
	// ----------------------------------------
	// Tariff
	// ----------------------------------------

	// DefaultBasicRatePerKW is the basic charge per contracted kW per billing cycle
	DefaultBasicRatePerKW = 8320.0
	// DefaultShortageMultiplier applies to every kW drawn above the contract
	DefaultShortageMultiplier = 1.5
	// MonthsPerYear is used to annualize a single billing-cycle cost
	MonthsPerYear = 12

	// ----------------------------------------
	// Candidate generation
	// ----------------------------------------

	DefaultStepKW                = 10.0
	DefaultLowerAnchorPercentile = 0.10
	DefaultUpperAnchorPercentile = 0.99
	DefaultCandidatePadKW        = 30.0
	DefaultDegenerateMarginRatio = 0.5
	DefaultDegenerateMinSteps    = 4

	// ----------------------------------------
	// Evaluation and selection
	// ----------------------------------------

	// DefaultWasteThresholdRatio marks a sample as waste when it is below contract*ratio
	DefaultWasteThresholdRatio = 0.5
	// DefaultOverageCeiling is the maximum acceptable overage probability
	DefaultOverageCeiling = 0.10
	// DefaultTieTolerance is the risk-score distance treated as a tie
	DefaultTieTolerance = 1e-9
	// DefaultSafetyPercentile anchors the tie-break toward safety
	DefaultSafetyPercentile = 0.95

	DefaultCostWeight       = 0.4
	DefaultOverageWeight    = 0.3
	DefaultWasteWeight      = 0.2
	DefaultVolatilityWeight = 0.1

	// ----------------------------------------
	// Ensemble
	// ----------------------------------------

	// DefaultEnsembleSampleCount is the length both sub-model distributions are matched to
	DefaultEnsembleSampleCount = 1000
	DefaultDevelopingSessions  = 500
	DefaultMatureSessions      = 1000

	// ----------------------------------------
	// Urgency
	// ----------------------------------------

	DefaultHighMismatchRatio   = 0.30
	DefaultMediumMismatchRatio = 0.10
	DefaultHighOverageRisk     = 0.20
	DefaultMediumOverageRisk   = 0.10
)

// Sub-model identifiers used in logs, metric labels and cache keys
const (
	ModelSequence = "sequence"
	ModelTree     = "tree"
)

// Payload schema version of ContractRecommendation
const RecommendationSchemaVersion = "v1"
