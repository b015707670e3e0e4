// Package config holds the engine settings read at startup.
package config

import (
	"bytes"
	"math/bits"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

// NumCascades is the number of shadow cascades rendered each frame.
const NumCascades = 4

// Config is the engine configuration. The zero value is not usable,
// start from Default.
type Config struct {
	// Window title, also used as the Vulkan application name.
	Title string `toml:"title"`
	// Initial window size in pixels.
	Width  int `toml:"width"`
	Height int `toml:"height"`
	// VSync selects FIFO presentation. When false, MAILBOX is
	// used if the surface supports it.
	VSync bool `toml:"vsync"`
	// Validation enables VK_LAYER_KHRONOS_validation and the
	// debug messenger.
	Validation bool `toml:"validation"`

	// FrameOverlap is the number of frames the CPU may record
	// ahead of the GPU. Must be 2 or 3.
	FrameOverlap int `toml:"frame_overlap"`
	// MaxBindlessImages is an upper bound for the bindless image
	// array. The device limits may lower it.
	MaxBindlessImages int `toml:"max_bindless_images"`

	Shadows ShadowConfig `toml:"shadows"`

	// ShaderDir is where compiled SPIR-V modules are read from.
	ShaderDir string `toml:"shader_dir"`
	// AssetDir is the root for meshes, textures and cubemaps.
	AssetDir string `toml:"asset_dir"`

	Log LogConfig `toml:"log"`
}

// ShadowConfig controls the cascaded shadow maps.
type ShadowConfig struct {
	Enabled bool `toml:"enabled"`
	// MapSize is the width and height of every cascade layer.
	MapSize int `toml:"map_size"`
	// CascadePercents are the far plane of each cascade as a
	// fraction of the camera far plane. Strictly increasing, the
	// last one must be 1.
	CascadePercents [NumCascades]float32 `toml:"cascade_percents"`
	// CullBypassRadius: casters with a bounding sphere at least
	// this large are never frustum culled.
	CullBypassRadius float32 `toml:"cull_bypass_radius"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Title:             "edbr",
		Width:             1280,
		Height:            720,
		VSync:             true,
		Validation:        true,
		FrameOverlap:      2,
		MaxBindlessImages: 4096,
		Shadows: ShadowConfig{
			Enabled:          true,
			MapSize:          4096,
			CascadePercents:  [NumCascades]float32{0.13, 0.33, 0.66, 1.0},
			CullBypassRadius: 2.0,
		},
		ShaderDir: "shaders",
		AssetDir:  "assets",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML file over Default. Keys missing from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return cfg, errors.Wrapf(err, "%s:%d:%d", path, row, col)
		}
		return cfg, errors.Wrapf(err, "decoding config %s", path)
	}

	return cfg, cfg.Validate()
}

// Validate checks the invariants the renderer relies on.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Errorf("invalid window size %dx%d", c.Width, c.Height)
	}
	if c.FrameOverlap < 2 || c.FrameOverlap > 3 {
		return errors.Errorf("frame_overlap must be 2 or 3, got %d", c.FrameOverlap)
	}
	if c.MaxBindlessImages < 1 {
		return errors.Errorf("max_bindless_images must be positive, got %d", c.MaxBindlessImages)
	}
	return c.Shadows.Validate()
}

func (s *ShadowConfig) Validate() error {
	if s.MapSize <= 0 || bits.OnesCount(uint(s.MapSize)) != 1 {
		return errors.Errorf("shadow map_size must be a power of two, got %d", s.MapSize)
	}
	if s.CullBypassRadius < 0 {
		return errors.Errorf("cull_bypass_radius must not be negative, got %g", s.CullBypassRadius)
	}

	prev := float32(0)
	for i, p := range s.CascadePercents {
		if p <= prev || p > 1 {
			return errors.Errorf("cascade_percents[%d] = %g, must be increasing within (0, 1]", i, p)
		}
		prev = p
	}
	if prev != 1 {
		return errors.Errorf("last cascade percent must be 1, got %g", prev)
	}
	return nil
}
