package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

var sampleCountsDescending = []core1_0.SampleCountFlags{
	core1_0.Samples64,
	core1_0.Samples32,
	core1_0.Samples16,
	core1_0.Samples8,
	core1_0.Samples4,
	core1_0.Samples2,
	core1_0.Samples1,
}

// blitFormats are checked for linear blit support at init, for mip
// generation and the end of frame blit.
var blitFormats = []core1_0.Format{
	core1_0.FormatR8G8B8A8SRGB,
	core1_0.FormatR8G8B8A8UnsignedNormalized,
	core1_0.FormatB8G8R8A8SRGB,
	core1_0.FormatB8G8R8A8UnsignedNormalized,
	core1_0.FormatR16G16B16A16SignedFloat,
}

// Capabilities are hardware properties queried once when the device is
// created.
type Capabilities struct {
	DeviceName string

	// SampleCounts supported by both color and depth framebuffer
	// attachments.
	SampleCounts  core1_0.SampleCountFlags
	MaxAnisotropy float32
	// MaxBindlessImages is the bindless array length after clamping
	// the configured value to the descriptor limits.
	MaxBindlessImages int
	DepthFormat       core1_0.Format
	// BufferDeviceAddress is set when buffers can expose a device
	// address.
	BufferDeviceAddress bool
	// DescriptorIndexing is set when runtime sized, non-uniformly indexed
	// and partially bound sampler arrays are enabled. Devices without it
	// are never picked.
	DescriptorIndexing bool
	// NonUniformIndexingNative reports that non-uniform sampled image
	// indexing costs nothing extra.
	NonUniformIndexingNative bool

	linearBlit map[core1_0.Format]bool
}

func (c *Capabilities) SupportsSampleCount(samples core1_0.SampleCountFlags) bool {
	return c.SampleCounts&samples == samples
}

// MaxSampleCount is the highest single sample count supported.
func (c *Capabilities) MaxSampleCount() core1_0.SampleCountFlags {
	for _, s := range sampleCountsDescending {
		if c.SampleCounts&s != 0 {
			return s
		}
	}
	return core1_0.Samples1
}

// SupportsLinearBlit reports whether format supports linear filtering with
// optimal tiling, which mip generation blits need.
func (c *Capabilities) SupportsLinearBlit(format core1_0.Format) bool {
	return c.linearBlit[format]
}

// clampBindless lowers requested to the smallest positive limit.
func clampBindless(requested int, limits ...int) int {
	n := requested
	for _, limit := range limits {
		if limit > 0 && limit < n {
			n = limit
		}
	}
	return n
}

func (d *Device) queryCapabilities() error {
	properties, err := d.instanceDriver.GetPhysicalDeviceProperties(d.physicalDevice)
	if err != nil {
		return errors.Wrap(err, "querying device properties")
	}

	caps := Capabilities{
		DeviceName:    properties.DeviceName,
		SampleCounts:  properties.Limits.FramebufferColorSampleCounts & properties.Limits.FramebufferDepthSampleCounts,
		MaxAnisotropy: properties.Limits.MaxSamplerAnisotropy,
		linearBlit:    make(map[core1_0.Format]bool),
	}

	indexing, err := d.queryDescriptorIndexing(d.physicalDevice)
	if err != nil {
		return err
	}
	caps.DescriptorIndexing = len(missingIndexingFeatures(indexing.features)) == 0
	caps.NonUniformIndexingNative = indexing.properties.ShaderSampledImageArrayNonUniformIndexingNative

	limits := []int{
		properties.Limits.MaxPerStageDescriptorSamplers,
		properties.Limits.MaxPerStageDescriptorSampledImages,
		properties.Limits.MaxDescriptorSetSamplers,
		properties.Limits.MaxDescriptorSetSampledImages,
	}
	caps.MaxBindlessImages = clampBindless(d.cfg.MaxBindlessImages, append(limits, indexing.bindlessLimits()...)...)

	for _, format := range blitFormats {
		props := d.instanceDriver.GetPhysicalDeviceFormatProperties(d.physicalDevice, format)
		caps.linearBlit[format] = props.OptimalTilingFeatures&core1_0.FormatFeatureSampledImageFilterLinear != 0
	}

	caps.DepthFormat, err = d.findSupportedFormat(
		[]core1_0.Format{core1_0.FormatD32SignedFloat, core1_0.FormatD32SignedFloatS8UnsignedInt, core1_0.FormatD24UnsignedNormalizedS8UnsignedInt},
		core1_0.FormatFeatureDepthStencilAttachment,
	)
	if err != nil {
		return err
	}

	caps.BufferDeviceAddress = d.addressExtension != nil

	d.caps = caps
	d.logger.Info("device capabilities",
		"device", caps.DeviceName,
		"maxSamples", int(caps.MaxSampleCount()),
		"maxAnisotropy", caps.MaxAnisotropy,
		"bindlessImages", caps.MaxBindlessImages,
		"depthFormat", caps.DepthFormat.String(),
		"nonUniformNative", caps.NonUniformIndexingNative,
	)
	return nil
}

func (d *Device) findSupportedFormat(formats []core1_0.Format, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := d.instanceDriver.GetPhysicalDeviceFormatProperties(d.physicalDevice, format)
		if props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}
	return 0, errors.Errorf("failed to find supported format for featureset %s", features)
}
