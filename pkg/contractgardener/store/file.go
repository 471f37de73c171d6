package store

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

const fileDateLayout = "2006-01-02"

// FileStore implements Store using one JSON file per station per day
type FileStore struct {
	dataDir string
	mutex   sync.RWMutex
}

// NewFileStore creates a file-based store rooted at dataDir
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) stationPrefix(stationID string) string {
	return url.PathEscape(stationID) + "_"
}

// Save appends a record to the station's daily file
func (s *FileStore) Save(record Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	filename := s.stationPrefix(record.StationID) + record.CreatedAt.UTC().Format(fileDateLayout) + ".json"
	path := filepath.Join(s.dataDir, filename)

	var records []Record
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &records); err != nil {
			klog.V(2).InfoS("Failed to unmarshal existing records", "file", path, "error", err)
		}
	}
	records = append(records, record)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write records file: %v", err)
	}

	klog.V(3).InfoS("Stored recommendation to file",
		"file", path,
		"id", record.ID,
		"station", record.StationID)

	return nil
}

// Latest returns the most recent record for a station
func (s *FileStore) Latest(stationID string) (*Record, error) {
	records, err := s.History(stationID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w for station %s", ErrNotFound, stationID)
	}
	return &records[0], nil
}

// History returns up to limit records for a station, newest first
func (s *FileStore) History(stationID string, limit int) ([]Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	files, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %v", err)
	}

	prefix := s.stationPrefix(stationID)
	var records []Record
	for _, file := range files {
		name := file.Name()
		if !file.Type().IsRegular() || !strings.HasPrefix(name, prefix) || filepath.Ext(name) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dataDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read records file: %v", err)
		}
		var dayRecords []Record
		if err := json.Unmarshal(data, &dayRecords); err != nil {
			klog.V(2).InfoS("Skipping unreadable records file", "file", name, "error", err)
			continue
		}
		for _, r := range dayRecords {
			// Prefix matching can include stations whose id extends this one
			if r.StationID == stationID {
				records = append(records, r)
			}
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Cleanup removes daily files older than the retention period
func (s *FileStore) Cleanup(retentionDays int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoffTime := time.Now().UTC().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(s.dataDir)
	if err != nil {
		return fmt.Errorf("failed to read data directory: %v", err)
	}

	removedCount := 0
	for _, file := range files {
		name := file.Name()
		if !file.Type().IsRegular() || filepath.Ext(name) != ".json" || len(name) < len(fileDateLayout)+len(".json") {
			continue
		}

		// Filename format: station_2006-01-02.json
		dateStr := name[len(name)-15 : len(name)-5]
		fileDate, err := time.Parse(fileDateLayout, dateStr)
		if err != nil {
			continue
		}

		if fileDate.Before(cutoffTime) {
			path := filepath.Join(s.dataDir, name)
			if err := os.Remove(path); err != nil {
				klog.V(2).InfoS("Failed to remove old file", "file", path, "error", err)
			} else {
				removedCount++
			}
		}
	}

	klog.V(2).InfoS("Cleaned up old recommendation files",
		"cutoff", cutoffTime,
		"filesDeleted", removedCount)

	return nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}
