// Package config assembles the construction parameters for the whole
// storage engine into a single struct, following the plain-struct-plus-
// defaults style of pkg/logger.Config and pkg/telemetry.Config.
package config

import (
	"fmt"

	"github.com/sushant-115/gojodb-storage/core/storage/diskmanager"
	"github.com/sushant-115/gojodb-storage/pkg/logger"
	"github.com/sushant-115/gojodb-storage/pkg/telemetry"
)

// Config bundles the construction parameters named in SPEC_FULL.md §6,
// except the B+Tree header page id, which is passed to btree.New directly.
type Config struct {
	// NumFrames is the buffer pool's frame capacity.
	NumFrames int `yaml:"num_frames"`
	// KDist is the LRU-K replacer's K (K >= 1).
	KDist int `yaml:"k_dist"`
	// LeafMaxSize and InternalMaxSize bound B+Tree page slot counts.
	LeafMaxSize     int `yaml:"leaf_max_size"`
	InternalMaxSize int `yaml:"internal_max_size"`
	// PageSize is the byte size of one page on disk.
	PageSize int `yaml:"page_size"`
	// DiskWriteRateLimit caps the disk scheduler's write dispatch in
	// pages/second; zero disables throttling.
	DiskWriteRateLimit float64 `yaml:"disk_write_rate_limit"`
	// DBPath is the backing file for the DiskManager.
	DBPath string `yaml:"db_path"`

	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Default returns a Config with the engine's documented defaults: a modest
// pool, K=2, BusTub-standard page layout sizes, and telemetry disabled.
func Default() Config {
	return Config{
		NumFrames:          64,
		KDist:              2,
		LeafMaxSize:        4,
		InternalMaxSize:    5,
		PageSize:           diskmanager.DefaultPageSize,
		DiskWriteRateLimit: 0,
		DBPath:             "gojodb.db",
		Logger: logger.Config{
			Level:      "info",
			Format:     "json",
			OutputFile: "stdout",
		},
		Telemetry: telemetry.Config{
			Enabled:          false,
			ServiceName:      "gojodb-storage",
			PrometheusPort:   9090,
			TraceSampleRatio: 1.0,
		},
	}
}

// Validate checks the invariants construction depends on: a non-empty pool,
// a K of at least 1, and page-capacity parameters that leave room for a
// B+Tree page to actually hold entries.
func (c Config) Validate() error {
	if c.NumFrames <= 0 {
		return fmt.Errorf("config: num_frames must be positive, got %d", c.NumFrames)
	}
	if c.KDist < 1 {
		return fmt.Errorf("config: k_dist must be >= 1, got %d", c.KDist)
	}
	if c.LeafMaxSize < 2 {
		return fmt.Errorf("config: leaf_max_size must be >= 2, got %d", c.LeafMaxSize)
	}
	if c.InternalMaxSize < 2 {
		return fmt.Errorf("config: internal_max_size must be >= 2, got %d", c.InternalMaxSize)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("config: page_size must be positive, got %d", c.PageSize)
	}
	if c.DiskWriteRateLimit < 0 {
		return fmt.Errorf("config: disk_write_rate_limit must be >= 0, got %f", c.DiskWriteRateLimit)
	}
	return nil
}
