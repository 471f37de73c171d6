package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/cache"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/ensemble"
)

// MockHTTPClient is a mock implementation of HTTPClient for testing
type MockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

// Do implements the HTTPClient interface
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if m.DoFunc != nil {
		return m.DoFunc(req)
	}
	return nil, errors.New("mock http client not implemented")
}

func testConfig() config.ModelsConfig {
	return config.ModelsConfig{
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
}

func TestPredictSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/stations/station%2F7/peak-distribution", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"available": true,
			"samples":   []float64{100, 110, 120},
		})
	}))
	defer server.Close()

	c := NewClient("tree", server.URL+"/", testConfig())
	out, err := c.Predict(context.Background(), "station/7")
	require.NoError(t, err)
	assert.True(t, out.Available)
	assert.Equal(t, []float64{100, 110, 120}, out.Samples)
	assert.Equal(t, "tree", c.Model())
}

func TestPredictRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"available":true,"point_estimate_kw":120,"uncertainty_kw":8}`))
	}))
	defer server.Close()

	out, err := NewClient("sequence", server.URL, testConfig()).Predict(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	require.NotNil(t, out.PointKW)
	assert.Equal(t, 120.0, *out.PointKW)
	assert.Equal(t, 8.0, *out.UncertaintyKW)
}

func TestPredictGivesUp(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient("tree", server.URL, testConfig()).Predict(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tree model request failed")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "one attempt plus two retries")
}

func TestPredictClientErrorsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewClient("tree", server.URL, testConfig()).Predict(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPredictNotFoundIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	out, err := NewClient("sequence", server.URL, testConfig()).Predict(context.Background(), "brand-new")
	require.NoError(t, err)
	assert.False(t, out.Available)
	assert.NotEmpty(t, out.Error)
}

func TestPredictValidation(t *testing.T) {
	c := NewClient("tree", "http://unused", testConfig(), WithHTTPClient(&MockHTTPClient{}))
	_, err := c.Predict(context.Background(), "")
	assert.Error(t, err)
}

func TestPredictTransportErrorAndCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mockClient := &MockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		cancel()
		return nil, errors.New("connection refused")
	}}
	cfg := testConfig()
	cfg.RetryDelay = time.Second

	_, err := NewClient("tree", "http://unused", cfg, WithHTTPClient(mockClient)).Predict(ctx, "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictUsesCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"available":true,"samples":[90,95]}`))
	}))
	defer server.Close()

	c := cache.New(time.Minute, time.Hour)
	defer c.Close()
	client := NewClient("tree", server.URL, testConfig(), WithCache(c))

	first, err := client.Predict(context.Background(), "s1")
	require.NoError(t, err)
	second, err := client.Predict(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, first.Samples, second.Samples)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var _ ensemble.Predictor = client
}

func TestBackoffDuration(t *testing.T) {
	c := NewClient("tree", "http://unused", config.ModelsConfig{RetryDelay: time.Second})
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		d := c.getBackoffDuration(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(float64(base)*0.8))
		assert.LessOrEqual(t, d, time.Duration(float64(base)*1.2))
	}
	assert.LessOrEqual(t, c.getBackoffDuration(10), 36*time.Second)
}
