package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/core1_1"
	"github.com/vkngwrapper/extensions/v3/khr_buffer_device_address"
)

// BufferUsageShaderDeviceAddress lets shaders reach a buffer through its
// device address.
const BufferUsageShaderDeviceAddress = khr_buffer_device_address.BufferUsageShaderDeviceAddress

// addressFeatures chains the buffer device address feature into device
// creation.
func addressFeatures(next common.Options) common.Options {
	features := khr_buffer_device_address.PhysicalDeviceBufferDeviceAddressFeatures{
		BufferDeviceAddress: true,
	}
	features.NextOptions = common.NextOptions{Next: next}
	return features
}

func addressAllocateInfo(next common.Options) common.Options {
	info := core1_1.MemoryAllocateFlagsInfo{
		Flags: khr_buffer_device_address.MemoryAllocateDeviceAddress,
	}
	info.Next = next
	return info
}

func (d *Device) bufferDeviceAddress(buffer core1_0.Buffer) (uint64, error) {
	if d.addressExtension == nil {
		return 0, errors.New("buffer device address extension not loaded")
	}
	address, err := d.addressExtension.GetBufferDeviceAddress(khr_buffer_device_address.BufferDeviceAddressInfo{
		Buffer: buffer,
	})
	if err != nil {
		return 0, errors.Wrap(err, "getting buffer device address")
	}
	return address, nil
}
