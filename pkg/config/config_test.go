package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_RejectsBadFields(t *testing.T) {
	cases := map[string]func(*Config){
		"num_frames":      func(c *Config) { c.NumFrames = 0 },
		"k_dist":          func(c *Config) { c.KDist = 0 },
		"leaf_max_size":   func(c *Config) { c.LeafMaxSize = 1 },
		"internal_max":    func(c *Config) { c.InternalMaxSize = 1 },
		"page_size":       func(c *Config) { c.PageSize = 0 },
		"disk_rate_limit": func(c *Config) { c.DiskWriteRateLimit = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
