package ensemble

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
)

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newCombiner() *Combiner {
	return NewCombiner(config.Default().Ensemble)
}

func TestClassifyMaturity(t *testing.T) {
	tiers := config.Default().Ensemble.Tiers
	tests := []struct {
		sessions int
		want     string
	}{
		{0, MaturityNew},
		{499, MaturityNew},
		{500, MaturityDeveloping},
		{999, MaturityDeveloping},
		{1000, MaturityMature},
		{1500, MaturityMature},
	}
	for _, tt := range tests {
		tier, err := ClassifyMaturity(tt.sessions, tiers)
		require.NoError(t, err)
		assert.Equal(t, tt.want, tier.Name, "sessions=%d", tt.sessions)
	}

	// Order of the configured tiers does not matter
	reversed := []config.MaturityTier{tiers[2], tiers[0], tiers[1]}
	tier, err := ClassifyMaturity(700, reversed)
	require.NoError(t, err)
	assert.Equal(t, MaturityDeveloping, tier.Name)

	_, err = ClassifyMaturity(-1, tiers)
	assert.True(t, errors.Is(err, common.ErrInvalidParameter))
	_, err = ClassifyMaturity(10, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidParameter))
}

func TestCombineMatureWeights(t *testing.T) {
	combined, err := newCombiner().Combine(Request{
		Sequence:     ModelOutput{Available: true, Samples: constant(100, 1000)},
		Tree:         ModelOutput{Available: true, Samples: constant(0, 1000)},
		SessionCount: 1500,
	})
	require.NoError(t, err)

	mean, std := combined.Distribution.MeanStd()
	assert.InDelta(t, 60.0, mean, 1e-9)
	assert.InDelta(t, 0, std, 1e-9)
	assert.Equal(t, MaturityMature, combined.Maturity.Name)
	assert.Equal(t, 1000, combined.Distribution.Len())
	assert.InDelta(t, 1.0, combined.Confidence, 1e-9, "both models, mature, tight spread")
}

func TestCombineBothUnavailable(t *testing.T) {
	_, err := newCombiner().Combine(Request{
		Sequence:     ModelOutput{Available: false, PointKW: ptr.To(100.0)},
		Tree:         ModelOutput{Available: false},
		SessionCount: 100,
	})
	assert.True(t, errors.Is(err, common.ErrEmptyDistribution))
}

func TestCombineFallbackFromOtherModel(t *testing.T) {
	combined, err := newCombiner().Combine(Request{
		Sequence:     ModelOutput{Available: true, Samples: constant(100, 10)},
		Tree:         ModelOutput{Available: false, Error: "insufficient training data"},
		SessionCount: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, 1000, combined.Distribution.Len())
	assert.InDelta(t, 100.0, combined.Distribution.Min(), 1e-9)
	assert.InDelta(t, 100.0, combined.Distribution.Max(), 1e-9)

	tree := combined.Models[1]
	assert.Equal(t, common.ModelTree, tree.Model)
	assert.False(t, tree.Available)
	assert.True(t, tree.UsedFallback)
	assert.Equal(t, "insufficient training data", tree.Error)
	assert.Equal(t, 10, combined.Models[0].SampleCount)

	// NEW tier plus one available model plus the tightest band
	assert.InDelta(t, 0.1+0.15+0.3, combined.Confidence, 1e-9)
}

func TestCombineFallbackFromProvidedEstimate(t *testing.T) {
	combined, err := newCombiner().Combine(Request{
		Sequence:     ModelOutput{Available: true, Samples: constant(100, 1000)},
		Tree:         ModelOutput{Available: false, PointKW: ptr.To(50.0), UncertaintyKW: ptr.To(0.0)},
		SessionCount: 10,
	})
	require.NoError(t, err)
	mean, _ := combined.Distribution.MeanStd()
	assert.InDelta(t, 0.3*100+0.7*50, mean, 1e-9)
}

func TestCombinePointOnlyModelIsAvailable(t *testing.T) {
	combined, err := newCombiner().Combine(Request{
		Sequence:     ModelOutput{Available: true, PointKW: ptr.To(120.0), UncertaintyKW: ptr.To(10.0)},
		Tree:         ModelOutput{Available: true, Samples: []float64{110, 115, 120}},
		SessionCount: 600,
	})
	require.NoError(t, err)
	assert.True(t, combined.Models[0].Available)
	assert.False(t, combined.Models[0].UsedFallback)
	mean, _ := combined.Distribution.MeanStd()
	assert.InDelta(t, 0.5*120+0.5*115, mean, 2.0)
}

func TestCombineDeterministicSeed(t *testing.T) {
	req := Request{
		Sequence:     ModelOutput{Available: true, Samples: []float64{90, 100, 110, 120, 130}},
		Tree:         ModelOutput{Available: false, PointKW: ptr.To(100.0), UncertaintyKW: ptr.To(20.0)},
		SessionCount: 800,
		Seed:         ptr.To(uint64(7)),
	}
	c := newCombiner()

	first, err := c.Combine(req)
	require.NoError(t, err)
	second, err := c.Combine(req)
	require.NoError(t, err)
	assert.Equal(t, first.Distribution.Samples(), second.Distribution.Samples())
	assert.Equal(t, uint64(7), first.Seed)

	req.Seed = ptr.To(uint64(8))
	third, err := c.Combine(req)
	require.NoError(t, err)
	assert.NotEqual(t, first.Distribution.Samples(), third.Distribution.Samples())

	req.Seed = nil
	fourth, err := c.Combine(req)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Ensemble.Seed, fourth.Seed)
}

func TestCombineLengthMatching(t *testing.T) {
	long := make([]float64, 2500)
	for i := range long {
		long[i] = float64(i)
	}
	combined, err := newCombiner().Combine(Request{
		Sequence:     ModelOutput{Available: true, Samples: long},
		Tree:         ModelOutput{Available: true, Samples: []float64{10, 20}},
		SessionCount: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, combined.Distribution.Len())
	// Truncation keeps the first draws; upsampling keeps the originals in place
	assert.InDelta(t, 0.6*0+0.4*10, combined.Distribution.At(0), 1e-9)
	assert.InDelta(t, 0.6*1+0.4*20, combined.Distribution.At(1), 1e-9)
}

func TestCombineSanitizesAndClips(t *testing.T) {
	combined, err := newCombiner().Combine(Request{
		Sequence:     ModelOutput{Available: true, Samples: []float64{math.NaN(), 100, -5, math.Inf(1)}},
		Tree:         ModelOutput{Available: true, Samples: []float64{100}},
		SessionCount: 0,
	})
	require.NoError(t, err)
	seq := combined.Models[0]
	assert.Equal(t, 2, seq.Dropped)
	assert.Equal(t, 1, seq.Clipped)
	assert.Equal(t, 2, seq.SampleCount)
	assert.GreaterOrEqual(t, combined.Distribution.Min(), 0.0)

	// A negative point estimate feeds negative samples into the sum
	negative, err := newCombiner().Combine(Request{
		Sequence:     ModelOutput{Available: true, PointKW: ptr.To(-50.0)},
		Tree:         ModelOutput{Available: false},
		SessionCount: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, negative.ClippedOutput)
	assert.Equal(t, 0.0, negative.Distribution.Max())
}

func TestCombineNoUsableSamples(t *testing.T) {
	_, err := newCombiner().Combine(Request{
		Sequence:     ModelOutput{Available: true, Samples: []float64{math.NaN()}},
		Tree:         ModelOutput{Available: true},
		SessionCount: 0,
	})
	assert.True(t, errors.Is(err, common.ErrEmptyDistribution))

	_, err = newCombiner().Combine(Request{SessionCount: -3})
	assert.True(t, errors.Is(err, common.ErrInvalidParameter))
}

func TestConfidenceSpreadBands(t *testing.T) {
	c := newCombiner()
	mature, err := ClassifyMaturity(1000, c.config.Tiers)
	require.NoError(t, err)
	both := []ModelReport{{Available: true}, {Available: true}}

	assert.InDelta(t, 1.0, c.confidence(both, mature, 5), 1e-9)
	assert.InDelta(t, 0.9, c.confidence(both, mature, 15), 1e-9)
	assert.InDelta(t, 0.8, c.confidence(both, mature, 25), 1e-9)
	assert.InDelta(t, 0.7, c.confidence(both, mature, 35), 1e-9)
	assert.InDelta(t, 0.4, c.confidence(nil, mature, 35), 1e-9)
}

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, stationID string) (*ModelOutput, error) {
	args := m.Called(ctx, stationID)
	out, _ := args.Get(0).(*ModelOutput)
	return out, args.Error(1)
}

func TestCollect(t *testing.T) {
	seq := &mockPredictor{}
	seq.On("Predict", mock.Anything, "station-1").Return(&ModelOutput{Available: true, Samples: []float64{1, 2}}, nil)
	tree := &mockPredictor{}
	tree.On("Predict", mock.Anything, "station-1").Return(nil, errors.New("connection refused"))

	seqOut, treeOut := Collect(context.Background(), "station-1", seq, tree)
	assert.True(t, seqOut.Available)
	assert.Equal(t, []float64{1, 2}, seqOut.Samples)
	assert.False(t, treeOut.Available)
	assert.Equal(t, "connection refused", treeOut.Error)
	seq.AssertExpectations(t)
	tree.AssertExpectations(t)

	seqOut, treeOut = Collect(context.Background(), "station-1", nil, nil)
	assert.False(t, seqOut.Available)
	assert.False(t, treeOut.Available)
}
