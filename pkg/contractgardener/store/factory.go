package store

import (
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
)

// New creates the store selected by configuration. It returns nil when the
// store is disabled.
func New(cfg config.StoreConfig) (Store, error) {
	if !cfg.Enabled {
		klog.V(2).InfoS("Recommendation store disabled")
		return nil, nil
	}
	if cfg.DatabasePath != "" {
		klog.V(2).InfoS("Using SQLite recommendation store", "path", cfg.DatabasePath)
		return NewSQLiteStore(cfg.DatabasePath)
	}
	dir := filepath.Join(cfg.DataDir, "recommendations")
	klog.V(2).InfoS("Using file recommendation store", "dir", dir)
	return NewFileStore(dir)
}
