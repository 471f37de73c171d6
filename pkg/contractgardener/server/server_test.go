package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractgardener "github.com/elevated-systems/contract-gardener/pkg/contractgardener"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/ensemble"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/recommend"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/store"
)

type staticPredictor struct {
	out *ensemble.ModelOutput
}

func (p staticPredictor) Predict(ctx context.Context, stationID string) (*ensemble.ModelOutput, error) {
	return p.out, nil
}

func newTestServer(t *testing.T, opts ...contractgardener.Option) *httptest.Server {
	t.Helper()
	advisor, err := contractgardener.New(config.Default(), opts...)
	require.NoError(t, err)
	srv := httptest.NewServer(New(advisor, true).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleRecommend(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv.URL+"/v1/recommendations", `{
		"station_id": "s1",
		"current_contract_kw": 100,
		"session_count": 1200,
		"sequence_model": {"available": true, "samples": [80, 90, 100, 110]},
		"tree_model": {"available": true, "samples": [85, 95, 105]}
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var rec recommend.ContractRecommendation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "s1", rec.StationID)
	assert.Equal(t, common.RecommendationSchemaVersion, rec.SchemaVersion)
	assert.NotEmpty(t, rec.AllCandidates)
	require.NotNil(t, rec.CurrentContractKW)
	assert.Equal(t, 100.0, *rec.CurrentContractKW)
}

func TestHandleRecommendErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed json", `{"station_id":`, http.StatusBadRequest, common.KindInvalidParameter},
		{"missing station", `{}`, http.StatusBadRequest, common.KindInvalidParameter},
		{
			"both models unavailable",
			`{"station_id":"s1","sequence_model":{"available":false},"tree_model":{"available":false}}`,
			http.StatusUnprocessableEntity, common.KindEmptyDistribution,
		},
		{
			"negative current contract",
			`{"station_id":"s1","current_contract_kw":-1,"sequence_model":{"available":true,"samples":[10]},"tree_model":{"available":true,"samples":[10]}}`,
			http.StatusBadRequest, common.KindInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/v1/recommendations", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.kind, body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHandleStationRecommendAndHistory(t *testing.T) {
	fileStore, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	prediction := &ensemble.ModelOutput{Available: true, Samples: []float64{40, 45, 50, 55, 60}}
	srv := newTestServer(t,
		contractgardener.WithStore(fileStore),
		contractgardener.WithPredictors(staticPredictor{prediction}, staticPredictor{prediction}))

	resp := post(t, srv.URL+"/v1/stations/s9/recommendation", `{"current_contract_kw": 100, "session_count": 50}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec recommend.ContractRecommendation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "s9", rec.StationID)
	assert.Equal(t, "NEW", rec.StationMaturity)

	// Empty body is accepted
	resp = post(t, srv.URL+"/v1/stations/s9/recommendation", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	histResp, err := http.Get(srv.URL + "/v1/stations/s9/history?limit=5")
	require.NoError(t, err)
	defer histResp.Body.Close()
	require.Equal(t, http.StatusOK, histResp.StatusCode)
	var records []store.Record
	require.NoError(t, json.NewDecoder(histResp.Body).Decode(&records))
	assert.Len(t, records, 2)

	badLimit, err := http.Get(srv.URL + "/v1/stations/s9/history?limit=zero")
	require.NoError(t, err)
	defer badLimit.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badLimit.StatusCode)
}

func TestHistoryStoreDisabled(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/v1/stations/s1/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestHealthMetricsVersion(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/metrics", "/version"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/v1/recommendations")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
