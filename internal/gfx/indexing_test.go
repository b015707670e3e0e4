package gfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/extensions/v3/ext_descriptor_indexing"
)

func TestMissingIndexingFeatures(t *testing.T) {
	assert.Equal(t, []string{
		"runtimeDescriptorArray",
		"shaderSampledImageArrayNonUniformIndexing",
		"descriptorBindingPartiallyBound",
	}, missingIndexingFeatures(ext_descriptor_indexing.PhysicalDeviceDescriptorIndexingFeatures{}))

	supported := ext_descriptor_indexing.PhysicalDeviceDescriptorIndexingFeatures{
		RuntimeDescriptorArray:                    true,
		ShaderSampledImageArrayNonUniformIndexing: true,
		DescriptorBindingPartiallyBound:           true,
	}
	assert.Empty(t, missingIndexingFeatures(supported))

	supported.DescriptorBindingPartiallyBound = false
	assert.Equal(t, []string{"descriptorBindingPartiallyBound"}, missingIndexingFeatures(supported))
}

func TestIndexingFeaturesEnableEverythingRequired(t *testing.T) {
	next := bindlessBindingFlags(nil)
	opts := indexingFeatures(next)

	features, ok := opts.(ext_descriptor_indexing.PhysicalDeviceDescriptorIndexingFeatures)
	require.True(t, ok)
	assert.Empty(t, missingIndexingFeatures(features))
	assert.Equal(t, next, features.NextOptions.Next)
}

func TestBindlessBindingFlagsPartiallyBound(t *testing.T) {
	flags, ok := bindlessBindingFlags(nil).(ext_descriptor_indexing.DescriptorSetLayoutBindingFlagsCreateInfo)
	require.True(t, ok)
	assert.Equal(t, []ext_descriptor_indexing.DescriptorBindingFlags{ext_descriptor_indexing.DescriptorBindingPartiallyBound}, flags.BindingFlags)
}

func TestBindlessClampedToIndexingLimits(t *testing.T) {
	di := descriptorIndexing{
		properties: ext_descriptor_indexing.PhysicalDeviceDescriptorIndexingProperties{
			MaxPerStageDescriptorUpdateAfterBindSamplers:      1 << 20,
			MaxPerStageDescriptorUpdateAfterBindSampledImages: 500000,
			MaxDescriptorSetUpdateAfterBindSamplers:           1 << 20,
			MaxDescriptorSetUpdateAfterBindSampledImages:      2048,
		},
	}
	assert.Equal(t, 2048, clampBindless(1<<16, di.bindlessLimits()...))
	assert.Equal(t, 1024, clampBindless(1024, di.bindlessLimits()...))
}
