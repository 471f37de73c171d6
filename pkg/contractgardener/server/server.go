package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	"k8s.io/klog/v2"

	contractgardener "github.com/elevated-systems/contract-gardener/pkg/contractgardener"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/store"
)

const (
	maxBodyBytes        = 16 << 20
	defaultHistoryLimit = 20
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StationRequest is the body of a server-side prediction request
type StationRequest struct {
	CurrentContractKW *float64 `json:"current_contract_kw,omitempty"`
	SessionCount      int      `json:"session_count"`
	Seed              *uint64  `json:"seed,omitempty"`
}

// Server exposes the advisor over HTTP
type Server struct {
	advisor        *contractgardener.Advisor
	metricsEnabled bool
}

// New creates an HTTP front end for the advisor
func New(advisor *contractgardener.Advisor, metricsEnabled bool) *Server {
	return &Server{advisor: advisor, metricsEnabled: metricsEnabled}
}

// Handler returns the service routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/recommendations", s.handleRecommend)
	mux.HandleFunc("POST /v1/stations/{id}/recommendation", s.handleStationRecommend)
	mux.HandleFunc("GET /v1/stations/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":   version.Version,
			"revision":  version.Revision,
			"branch":    version.Branch,
			"goVersion": version.GoVersion,
		})
	})
	if s.metricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return mux
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req contractgardener.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err, common.KindInvalidParameter)
		return
	}

	rec, err := s.advisor.Recommend(r.Context(), req)
	if err != nil {
		writeAdvisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStationRecommend(w http.ResponseWriter, r *http.Request) {
	var req StationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err, common.KindInvalidParameter)
		return
	}

	rec, err := s.advisor.RecommendForStation(r.Context(), r.PathValue("id"), req.CurrentContractKW, req.SessionCount, req.Seed)
	if err != nil {
		writeAdvisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer, got %q", raw), common.KindInvalidParameter)
			return
		}
		limit = parsed
	}

	records, err := s.advisor.History(r.PathValue("id"), limit)
	switch {
	case errors.Is(err, contractgardener.ErrStoreDisabled):
		writeError(w, http.StatusNotImplemented, err, "StoreDisabled")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err, common.KindInternal)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// decodeBody reads an optional JSON body; an empty body leaves v untouched
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request: %v", err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal request: %v", err)
	}
	return nil
}

func writeAdvisorError(w http.ResponseWriter, err error) {
	kind := common.ErrorKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case common.KindInvalidParameter, common.KindInvalidInput:
		status = http.StatusBadRequest
	case common.KindEmptyDistribution, common.KindNoCandidates:
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, err, kind)
}

func writeError(w http.ResponseWriter, status int, err error, kind string) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		klog.ErrorS(err, "Failed to marshal response")
		http.Error(w, fmt.Sprintf("Failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
