package distribution

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
)

func linear(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, common.ErrEmptyDistribution), "empty input should fail with ErrEmptyDistribution")

	_, err = New([]float64{10, math.NaN()})
	assert.True(t, errors.Is(err, common.ErrInvalidParameter), "NaN should be rejected")

	_, err = New([]float64{10, -1})
	assert.True(t, errors.Is(err, common.ErrInvalidParameter), "negative sample should be rejected")

	input := []float64{3, 1, 2}
	d, err := New(input)
	require.NoError(t, err)
	input[0] = 99
	assert.Equal(t, 3.0, d.At(0), "distribution must own a copy of its samples")
	assert.Equal(t, []float64{3, 1, 2}, d.Samples())
}

func TestPercentileAndStats(t *testing.T) {
	d, err := New(linear(100))
	require.NoError(t, err)

	p, err := d.Percentile(0.95)
	require.NoError(t, err)
	assert.Equal(t, 95.0, p)

	_, err = d.Percentile(1.5)
	assert.True(t, errors.Is(err, common.ErrInvalidParameter))

	s := d.Stats()
	assert.Equal(t, 100, s.Count)
	assert.InDelta(t, 50.5, s.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt((100*100-1)/12.0), s.Std, 1e-9)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 100.0, s.Max)
	assert.Equal(t, 5.0, s.P5)
	assert.Equal(t, 50.0, s.P50)
	assert.NoError(t, s.Validate())
}

func TestSingleSample(t *testing.T) {
	d, err := New([]float64{42})
	require.NoError(t, err)
	mean, std := d.MeanStd()
	assert.Equal(t, 42.0, mean)
	assert.Equal(t, 0.0, std)
	assert.Equal(t, 1, d.Distinct())
	assert.NoError(t, d.Stats().Validate())
}

func TestDistinct(t *testing.T) {
	d, err := New([]float64{5, 5, 7, 5, 9, 7})
	require.NoError(t, err)
	assert.Equal(t, 3, d.Distinct())
}

func TestStatsValidate(t *testing.T) {
	valid := Stats{Count: 10, Mean: 50, Std: 5, P5: 40, P50: 50, P95: 60, Min: 35, Max: 65}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Stats)
	}{
		{"p95 below p50", func(s *Stats) { s.P95 = 45 }},
		{"negative std", func(s *Stats) { s.Std = -1 }},
		{"zero count", func(s *Stats) { s.Count = 0 }},
		{"nan mean", func(s *Stats) { s.Mean = math.NaN() }},
		{"min above p5", func(s *Stats) { s.Min = 41 }},
		{"mean above max", func(s *Stats) { s.Mean = 70 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			assert.True(t, errors.Is(err, common.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestSanitize(t *testing.T) {
	raw := []float64{10, -3, math.NaN(), 20, math.Inf(-1), -0.5}
	clean, report := Sanitize(raw)

	assert.Equal(t, []float64{10, 0, 20, 0}, clean)
	assert.Equal(t, SanitizeReport{Received: 6, Dropped: 2, Clipped: 2}, report)
	assert.True(t, report.Modified())
	assert.Equal(t, -3.0, raw[1], "input must not be modified")

	_, report = Sanitize([]float64{1, 2})
	assert.False(t, report.Modified())
}

func TestClipNonNegative(t *testing.T) {
	out, clipped := ClipNonNegative([]float64{-1, 0, 3})
	assert.Equal(t, []float64{0, 0, 3}, out)
	assert.Equal(t, 1, clipped)
}
