package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/core1_1"
	"github.com/vkngwrapper/extensions/v3/ext_descriptor_indexing"
)

// descriptorIndexing is what the bindless set needs from descriptor
// indexing, along with the limits that bound its size.
type descriptorIndexing struct {
	features   ext_descriptor_indexing.PhysicalDeviceDescriptorIndexingFeatures
	properties ext_descriptor_indexing.PhysicalDeviceDescriptorIndexingProperties
}

// missingIndexingFeatures lists the descriptor indexing features bindless
// shaders use that features lacks.
func missingIndexingFeatures(features ext_descriptor_indexing.PhysicalDeviceDescriptorIndexingFeatures) []string {
	var missing []string
	if !features.RuntimeDescriptorArray {
		missing = append(missing, "runtimeDescriptorArray")
	}
	if !features.ShaderSampledImageArrayNonUniformIndexing {
		missing = append(missing, "shaderSampledImageArrayNonUniformIndexing")
	}
	if !features.DescriptorBindingPartiallyBound {
		missing = append(missing, "descriptorBindingPartiallyBound")
	}
	return missing
}

// bindlessLimits are the descriptor indexing limits the bindless array
// length is clamped to.
func (di descriptorIndexing) bindlessLimits() []int {
	return []int{
		di.properties.MaxPerStageDescriptorUpdateAfterBindSamplers,
		di.properties.MaxPerStageDescriptorUpdateAfterBindSampledImages,
		di.properties.MaxDescriptorSetUpdateAfterBindSamplers,
		di.properties.MaxDescriptorSetUpdateAfterBindSampledImages,
	}
}

func (d *Device) queryDescriptorIndexing(device core1_0.PhysicalDevice) (descriptorIndexing, error) {
	var di descriptorIndexing

	instanceDriver, ok := d.instanceDriver.(core1_1.CoreInstanceDriver)
	if !ok {
		return di, errors.New("querying descriptor indexing: instance is older than Vulkan 1.1")
	}

	err := instanceDriver.GetPhysicalDeviceFeatures2(device, &core1_1.PhysicalDeviceFeatures2{
		NextOutData: common.NextOutData{Next: &di.features},
	})
	if err != nil {
		return di, errors.Wrap(err, "querying descriptor indexing features")
	}

	err = instanceDriver.GetPhysicalDeviceProperties2(device, &core1_1.PhysicalDeviceProperties2{
		NextOutData: common.NextOutData{Next: &di.properties},
	})
	if err != nil {
		return di, errors.Wrap(err, "querying descriptor indexing properties")
	}
	return di, nil
}

// indexingFeatures chains the descriptor indexing features bindless
// shaders use into device creation.
func indexingFeatures(next common.Options) common.Options {
	features := ext_descriptor_indexing.PhysicalDeviceDescriptorIndexingFeatures{
		RuntimeDescriptorArray:                    true,
		ShaderSampledImageArrayNonUniformIndexing: true,
		DescriptorBindingPartiallyBound:           true,
	}
	features.NextOptions = common.NextOptions{Next: next}
	return features
}

// bindlessBindingFlags lets bindless array slots stay unwritten while no
// shader reads them.
func bindlessBindingFlags(next common.Options) common.Options {
	flags := ext_descriptor_indexing.DescriptorSetLayoutBindingFlagsCreateInfo{
		BindingFlags: []ext_descriptor_indexing.DescriptorBindingFlags{
			ext_descriptor_indexing.DescriptorBindingPartiallyBound,
		},
	}
	flags.Next = next
	return flags
}
