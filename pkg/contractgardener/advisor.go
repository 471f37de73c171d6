package contractgardener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/clock"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/ensemble"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/metrics"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/optimizer"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/recommend"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/store"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/tariff"
)

// ErrStoreDisabled is returned by History when no audit store is configured
var ErrStoreDisabled = errors.New("recommendation store is disabled")

// Request asks for a contract recommendation for one station. Model outputs
// left nil are fetched from the configured predictors.
type Request struct {
	StationID         string                `json:"station_id"`
	CurrentContractKW *float64              `json:"current_contract_kw,omitempty"`
	SessionCount      int                   `json:"session_count"`
	Seed              *uint64               `json:"seed,omitempty"`
	Sequence          *ensemble.ModelOutput `json:"sequence_model,omitempty"`
	Tree              *ensemble.ModelOutput `json:"tree_model,omitempty"`
}

// Advisor runs the full pipeline: combine model distributions, optimize the
// contract, and synthesize the recommendation
type Advisor struct {
	config      *config.Config
	combiner    *ensemble.Combiner
	optimizer   *optimizer.Optimizer
	synthesizer *recommend.Synthesizer

	sequence ensemble.Predictor
	tree     ensemble.Predictor
	store    store.Store
	clock    clock.Clock
}

// Option customizes an Advisor
type Option func(*Advisor)

// WithPredictors sets the predictors used when a request omits model outputs
func WithPredictors(sequence, tree ensemble.Predictor) Option {
	return func(a *Advisor) {
		a.sequence = sequence
		a.tree = tree
	}
}

// WithStore records every produced recommendation
func WithStore(s store.Store) Option {
	return func(a *Advisor) {
		a.store = s
	}
}

// WithClock replaces the real clock
func WithClock(c clock.Clock) Option {
	return func(a *Advisor) {
		a.clock = c
	}
}

// New creates an Advisor from configuration
func New(cfg *config.Config, opts ...Option) (*Advisor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	t, err := tariff.New(cfg.Tariff.BasicRatePerKW, cfg.Tariff.ShortageMultiplier)
	if err != nil {
		return nil, err
	}

	a := &Advisor{
		config:      cfg,
		combiner:    ensemble.NewCombiner(cfg.Ensemble),
		optimizer:   optimizer.New(t, cfg.Optimizer),
		synthesizer: recommend.NewSynthesizer(cfg.Recommendation),
		clock:       clock.RealClock{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Recommend produces a recommendation. Hard errors are returned unchanged;
// unavailable models and degraded selection are reported in the result.
func (a *Advisor) Recommend(ctx context.Context, req Request) (*recommend.ContractRecommendation, error) {
	start := a.clock.Now()

	rec, seed, err := a.recommend(ctx, req)
	metrics.OptimizationLatency.WithLabelValues(resultLabel(err)).Observe(a.clock.Since(start).Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(common.ErrorKind(err)).Inc()
		klog.ErrorS(err, "Failed to produce contract recommendation",
			"station", req.StationID,
			"kind", common.ErrorKind(err))
		return nil, err
	}

	a.record(rec, seed, start)

	klog.V(2).InfoS("Produced contract recommendation",
		"station", rec.StationID,
		"recommendedKW", rec.RecommendedContractKW,
		"urgency", rec.UrgencyLevel,
		"confidence", rec.ConfidenceLevel,
		"degraded", rec.DegradedSelection,
		"duration", a.clock.Since(start))

	return rec, nil
}

// RecommendForStation fetches both model predictions and produces a
// recommendation
func (a *Advisor) RecommendForStation(ctx context.Context, stationID string, currentKW *float64, sessionCount int, seed *uint64) (*recommend.ContractRecommendation, error) {
	return a.Recommend(ctx, Request{
		StationID:         stationID,
		CurrentContractKW: currentKW,
		SessionCount:      sessionCount,
		Seed:              seed,
	})
}

func (a *Advisor) recommend(ctx context.Context, req Request) (*recommend.ContractRecommendation, uint64, error) {
	if req.StationID == "" {
		return nil, 0, fmt.Errorf("%w: station id is required", common.ErrInvalidParameter)
	}

	seqOut, treeOut := a.modelOutputs(ctx, req)

	combined, err := a.combiner.Combine(ensemble.Request{
		Sequence:     seqOut,
		Tree:         treeOut,
		SessionCount: req.SessionCount,
		Seed:         req.Seed,
	})
	if err != nil {
		return nil, 0, err
	}

	result, err := a.optimizer.Optimize(ctx, combined.Distribution, req.CurrentContractKW)
	if err != nil {
		return nil, 0, err
	}

	rec, err := a.synthesizer.Synthesize(recommend.Input{
		StationID:         req.StationID,
		Result:            result,
		CurrentContractKW: req.CurrentContractKW,
		Confidence:        combined.Confidence,
		Maturity:          combined.Maturity.Name,
		SubModels:         subModels(combined.Models),
	})
	if err != nil {
		return nil, 0, err
	}

	recordMetrics(rec, combined)
	return rec, combined.Seed, nil
}

// modelOutputs uses the outputs carried by the request and fetches the
// missing ones concurrently
func (a *Advisor) modelOutputs(ctx context.Context, req Request) (ensemble.ModelOutput, ensemble.ModelOutput) {
	if req.Sequence != nil && req.Tree != nil {
		return *req.Sequence, *req.Tree
	}

	var seqPredictor, treePredictor ensemble.Predictor
	if req.Sequence == nil {
		seqPredictor = a.sequence
	}
	if req.Tree == nil {
		treePredictor = a.tree
	}
	seqOut, treeOut := ensemble.Collect(ctx, req.StationID, seqPredictor, treePredictor)
	if req.Sequence != nil {
		seqOut = *req.Sequence
	}
	if req.Tree != nil {
		treeOut = *req.Tree
	}
	return seqOut, treeOut
}

// History returns stored recommendations for a station, newest first
func (a *Advisor) History(stationID string, limit int) ([]store.Record, error) {
	if a.store == nil {
		return nil, ErrStoreDisabled
	}
	return a.store.History(stationID, limit)
}

// record writes the recommendation to the audit store. A failed write is
// logged and does not fail the run.
func (a *Advisor) record(rec *recommend.ContractRecommendation, seed uint64, at time.Time) {
	if a.store == nil {
		return
	}
	r, err := store.NewRecord(rec, seed, at)
	if err == nil {
		err = a.store.Save(r)
	}
	if err != nil {
		metrics.StoredRecommendations.WithLabelValues("error").Inc()
		klog.ErrorS(err, "Failed to store recommendation", "station", rec.StationID)
		return
	}
	metrics.StoredRecommendations.WithLabelValues("success").Inc()
}

func recordMetrics(rec *recommend.ContractRecommendation, combined *ensemble.Combined) {
	metrics.RecommendationsTotal.WithLabelValues(string(rec.UrgencyLevel)).Inc()
	metrics.CandidateCount.Observe(float64(len(rec.AllCandidates)))
	metrics.RecommendedContract.Observe(rec.RecommendedContractKW)
	metrics.Confidence.Observe(rec.ConfidenceLevel)
	if rec.ExpectedAnnualSavings != nil {
		metrics.ExpectedSavings.Observe(*rec.ExpectedAnnualSavings)
	}
	if rec.DegradedSelection {
		metrics.DegradedSelectionsTotal.Inc()
	}
	for _, m := range combined.Models {
		if !m.Available {
			metrics.SubModelUnavailableTotal.WithLabelValues(m.Model).Inc()
		}
	}
}

func subModels(reports []ensemble.ModelReport) []recommend.SubModelStatus {
	out := make([]recommend.SubModelStatus, 0, len(reports))
	for _, r := range reports {
		out = append(out, recommend.SubModelStatus{
			Model:        r.Model,
			Available:    r.Available,
			UsedFallback: r.UsedFallback,
			Weight:       r.Weight,
			SampleCount:  r.SampleCount,
			Dropped:      r.Dropped,
			Clipped:      r.Clipped,
			Error:        r.Error,
		})
	}
	return out
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
