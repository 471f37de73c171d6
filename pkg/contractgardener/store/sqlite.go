package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"
)

// SQLiteStore implements Store using SQLite for local persistence
type SQLiteStore struct {
	db       *sql.DB
	dbPath   string
	mutex    sync.RWMutex
	prepared map[string]*sql.Stmt
}

// NewSQLiteStore opens or creates the recommendation database
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL&_cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	s := &SQLiteStore{
		db:       db,
		dbPath:   dbPath,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %v", err)
	}

	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %v", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recommendations (
		id TEXT PRIMARY KEY,
		station_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		seed TEXT NOT NULL,
		recommended_contract_kw REAL NOT NULL,
		current_contract_kw REAL,
		urgency_level TEXT NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL -- full recommendation JSON
	);

	CREATE INDEX IF NOT EXISTS idx_station_created ON recommendations(station_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_created_at ON recommendations(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	statements := map[string]string{
		"insert": `
			INSERT INTO recommendations (
				id, station_id, created_at, seed, recommended_contract_kw,
				current_contract_kw, urgency_level, degraded, payload
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
		"select_history": `
			SELECT id, station_id, created_at, seed, recommended_contract_kw,
				   current_contract_kw, urgency_level, degraded, payload
			FROM recommendations
			WHERE station_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		`,
		"cleanup": `
			DELETE FROM recommendations
			WHERE created_at < ?
		`,
	}

	for name, query := range statements {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %v", name, err)
		}
		s.prepared[name] = stmt
	}

	return nil
}

// Save stores a recommendation record
func (s *SQLiteStore) Save(record Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var current sql.NullFloat64
	if record.CurrentContractKW != nil {
		current = sql.NullFloat64{Float64: *record.CurrentContractKW, Valid: true}
	}

	_, err := s.prepared["insert"].Exec(
		record.ID,
		record.StationID,
		record.CreatedAt,
		strconv.FormatUint(record.Seed, 10),
		record.RecommendedContractKW,
		current,
		record.UrgencyLevel,
		record.Degraded,
		string(record.Payload),
	)
	if err != nil {
		klog.V(2).InfoS("Failed to store recommendation", "error", err, "station", record.StationID)
		return fmt.Errorf("failed to store record: %v", err)
	}

	klog.V(3).InfoS("Stored recommendation",
		"id", record.ID,
		"station", record.StationID,
		"recommendedKW", record.RecommendedContractKW)

	return nil
}

// Latest returns the most recent record for a station
func (s *SQLiteStore) Latest(stationID string) (*Record, error) {
	records, err := s.History(stationID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w for station %s", ErrNotFound, stationID)
	}
	return &records[0], nil
}

// History returns up to limit records for a station, newest first. A
// non-positive limit returns every record.
func (s *SQLiteStore) History(stationID string, limit int) ([]Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.prepared["select_history"].Query(stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %v", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var seed, payload string
		var current sql.NullFloat64

		err := rows.Scan(
			&record.ID,
			&record.StationID,
			&record.CreatedAt,
			&seed,
			&record.RecommendedContractKW,
			&current,
			&record.UrgencyLevel,
			&record.Degraded,
			&payload,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		if record.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			klog.V(2).InfoS("Invalid stored seed", "id", record.ID, "seed", seed)
		}
		if current.Valid {
			v := current.Float64
			record.CurrentContractKW = &v
		}
		record.Payload = []byte(payload)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %v", err)
	}

	return records, nil
}

// Cleanup removes records older than the retention period
func (s *SQLiteStore) Cleanup(retentionDays int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoffTime := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result, err := s.prepared["cleanup"].Exec(cutoffTime)
	if err != nil {
		return fmt.Errorf("failed to cleanup old records: %v", err)
	}

	rowsAffected, _ := result.RowsAffected()
	klog.V(2).InfoS("Cleaned up old recommendations",
		"cutoff", cutoffTime,
		"rowsDeleted", rowsAffected)

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var errs []error
	for _, stmt := range s.prepared {
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}
