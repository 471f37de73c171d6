package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/recommend"
)

// ErrNotFound is returned when a station has no stored recommendation
var ErrNotFound = errors.New("no stored recommendation")

// Store persists produced recommendations for audit
type Store interface {
	Save(record Record) error
	Latest(stationID string) (*Record, error)
	History(stationID string, limit int) ([]Record, error)
	Cleanup(retentionDays int) error
	Close() error
}

// Record is one stored recommendation run. Payload holds the full
// recommendation JSON; the other fields are indexed copies.
type Record struct {
	ID                    string          `json:"id"`
	StationID             string          `json:"station_id"`
	CreatedAt             time.Time       `json:"created_at"`
	Seed                  uint64          `json:"seed"`
	RecommendedContractKW float64         `json:"recommended_contract_kw"`
	CurrentContractKW     *float64        `json:"current_contract_kw,omitempty"`
	UrgencyLevel          string          `json:"urgency_level"`
	Degraded              bool            `json:"degraded_selection"`
	Payload               json.RawMessage `json:"payload"`
}

// NewRecord wraps a recommendation in a record with a fresh run id
func NewRecord(rec *recommend.ContractRecommendation, seed uint64, at time.Time) (Record, error) {
	if rec == nil {
		return Record{}, fmt.Errorf("recommendation cannot be nil")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to marshal recommendation: %v", err)
	}
	return Record{
		ID:                    uuid.NewString(),
		StationID:             rec.StationID,
		CreatedAt:             at.UTC(),
		Seed:                  seed,
		RecommendedContractKW: rec.RecommendedContractKW,
		CurrentContractKW:     rec.CurrentContractKW,
		UrgencyLevel:          string(rec.UrgencyLevel),
		Degraded:              rec.DegradedSelection,
		Payload:               payload,
	}, nil
}

// Recommendation decodes the stored payload
func (r Record) Recommendation() (*recommend.ContractRecommendation, error) {
	var rec recommend.ContractRecommendation
	if err := json.Unmarshal(r.Payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored recommendation %s: %v", r.ID, err)
	}
	return &rec, nil
}
