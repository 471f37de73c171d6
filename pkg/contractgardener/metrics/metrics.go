package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "contract_gardener"

	optimizerSubsystem = "optimizer"
	ensembleSubsystem  = "ensemble"
	predictorSubsystem = "predictor"
	storeSubsystem     = "store"
)

var (
	// RecommendationsTotal counts produced recommendations by urgency
	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: optimizerSubsystem,
			Name:      "recommendations_total",
			Help:      "Number of contract recommendations produced by urgency level",
		},
		[]string{"urgency"}, // "LOW", "MEDIUM", "HIGH"
	)

	// ErrorsTotal counts failed recommendation runs by error kind
	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: optimizerSubsystem,
			Name:      "errors_total",
			Help:      "Number of failed recommendation runs by error kind",
		},
		[]string{"kind"},
	)

	// DegradedSelectionsTotal counts runs where no candidate met the overage ceiling
	DegradedSelectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: optimizerSubsystem,
			Name:      "degraded_selections_total",
			Help:      "Number of selections where every candidate exceeded the overage probability ceiling",
		},
	)

	// OptimizationLatency measures one full recommendation run
	OptimizationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: optimizerSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Latency of recommendation runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"result"}, // "success", "error"
	)

	// CandidateCount tracks how many candidates each run evaluated
	CandidateCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: optimizerSubsystem,
			Name:      "candidates",
			Help:      "Number of contract candidates evaluated per run",
			Buckets:   prometheus.ExponentialBuckets(4, 2, 10),
		},
	)

	// RecommendedContract tracks recommended contract sizes across runs.
	// Per-station values are kept in the audit store rather than as labels.
	RecommendedContract = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: optimizerSubsystem,
			Name:      "recommended_contract_kw",
			Help:      "Recommended contract power in kW",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
		},
	)

	// ExpectedSavings tracks expected annual savings against the current contract
	ExpectedSavings = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: optimizerSubsystem,
			Name:      "expected_annual_savings",
			Help:      "Expected annual savings against the current contract",
			Buckets:   []float64{-1e7, -1e6, -1e5, 0, 1e5, 1e6, 1e7, 1e8},
		},
	)

	// Confidence tracks prediction confidence across runs
	Confidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: ensembleSubsystem,
			Name:      "confidence",
			Help:      "Prediction confidence (0-1)",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	// SubModelUnavailableTotal counts combinations that used a fallback distribution
	SubModelUnavailableTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: ensembleSubsystem,
			Name:      "submodel_unavailable_total",
			Help:      "Number of combinations where a predictive model was unavailable",
		},
		[]string{"model"},
	)

	// PredictorRequestsTotal counts calls to the predictive model services
	PredictorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: predictorSubsystem,
			Name:      "requests_total",
			Help:      "Number of predictive model requests by model and result",
		},
		[]string{"model", "result"}, // result: "success", "error"
	)

	// PredictorCacheHits counts prediction cache hits
	PredictorCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: predictorSubsystem,
			Name:      "cache_hits_total",
			Help:      "Number of predictions served from cache",
		},
		[]string{"model"},
	)

	// PredictorCacheMisses counts prediction cache misses
	PredictorCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: predictorSubsystem,
			Name:      "cache_misses_total",
			Help:      "Number of predictions not found in cache or expired",
		},
		[]string{"model"},
	)

	// StoredRecommendations counts recommendations written to the audit store
	StoredRecommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: storeSubsystem,
			Name:      "records_total",
			Help:      "Number of recommendations written to the audit store by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(RecommendationsTotal)
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(DegradedSelectionsTotal)
	prometheus.MustRegister(OptimizationLatency)
	prometheus.MustRegister(CandidateCount)
	prometheus.MustRegister(RecommendedContract)
	prometheus.MustRegister(ExpectedSavings)
	prometheus.MustRegister(Confidence)
	prometheus.MustRegister(SubModelUnavailableTotal)
	prometheus.MustRegister(PredictorRequestsTotal)
	prometheus.MustRegister(PredictorCacheHits)
	prometheus.MustRegister(PredictorCacheMisses)
	prometheus.MustRegister(StoredRecommendations)
}
