package gfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func TestMaxSampleCount(t *testing.T) {
	caps := Capabilities{SampleCounts: core1_0.Samples1 | core1_0.Samples2 | core1_0.Samples4 | core1_0.Samples8}
	assert.Equal(t, core1_0.Samples8, caps.MaxSampleCount())
	assert.True(t, caps.SupportsSampleCount(core1_0.Samples4))
	assert.False(t, caps.SupportsSampleCount(core1_0.Samples16))

	caps = Capabilities{}
	assert.Equal(t, core1_0.Samples1, caps.MaxSampleCount())
}

func TestSupportsLinearBlit(t *testing.T) {
	caps := Capabilities{linearBlit: map[core1_0.Format]bool{core1_0.FormatR8G8B8A8SRGB: true}}
	assert.True(t, caps.SupportsLinearBlit(core1_0.FormatR8G8B8A8SRGB))
	assert.False(t, caps.SupportsLinearBlit(core1_0.FormatR16G16B16A16SignedFloat))
}

func TestClampBindless(t *testing.T) {
	assert.Equal(t, 4096, clampBindless(4096, 1<<20, 1<<20))
	assert.Equal(t, 1024, clampBindless(4096, 1<<20, 1024, 2048))
	// zero means the driver did not report a limit
	assert.Equal(t, 16, clampBindless(16, 0, 64))
}
