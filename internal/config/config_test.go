package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edbr.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, float32(2.0), cfg.Shadows.CullBypassRadius)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
title = "mtp"
vsync = false
frame_overlap = 3

[shadows]
map_size = 2048
cascade_percents = [0.1, 0.3, 0.6, 1.0]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mtp", cfg.Title)
	assert.False(t, cfg.VSync)
	assert.Equal(t, 3, cfg.FrameOverlap)
	assert.Equal(t, 2048, cfg.Shadows.MapSize)
	assert.Equal(t, [NumCascades]float32{0.1, 0.3, 0.6, 1.0}, cfg.Shadows.CascadePercents)
	// untouched keys keep defaults
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, float32(2.0), cfg.Shadows.CullBypassRadius)
	assert.True(t, cfg.Shadows.Enabled)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `frame_overlapp = 2`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"overlap too small", func(c *Config) { c.FrameOverlap = 1 }},
		{"overlap too large", func(c *Config) { c.FrameOverlap = 4 }},
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"no bindless", func(c *Config) { c.MaxBindlessImages = 0 }},
		{"map size not pow2", func(c *Config) { c.Shadows.MapSize = 1000 }},
		{"negative radius", func(c *Config) { c.Shadows.CullBypassRadius = -1 }},
		{"percents not increasing", func(c *Config) {
			c.Shadows.CascadePercents = [NumCascades]float32{0.1, 0.1, 0.5, 1}
		}},
		{"last percent below one", func(c *Config) {
			c.Shadows.CascadePercents = [NumCascades]float32{0.1, 0.2, 0.5, 0.9}
		}},
		{"percent above one", func(c *Config) {
			c.Shadows.CascadePercents = [NumCascades]float32{0.1, 0.2, 0.5, 1.5}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
