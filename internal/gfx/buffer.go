package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Buffer is a device buffer with its own memory.
type Buffer struct {
	Handle core1_0.Buffer
	// Address is the device address, zero unless the buffer was
	// created with BufferUsageShaderDeviceAddress.
	Address uint64
	Size    int
	Usage   core1_0.BufferUsageFlags

	alloc allocation
}

// Mapped returns the persistent host mapping, or nil if the buffer is not
// host visible.
func (b *Buffer) Mapped() []byte {
	return b.alloc.mapped
}

// Write copies data into the mapping at offset.
func (b *Buffer) Write(offset int, data []byte) error {
	if b.alloc.mapped == nil {
		return errors.AssertionFailedf("write to unmapped buffer")
	}
	if offset < 0 || offset+len(data) > len(b.alloc.mapped) {
		return errors.AssertionFailedf("write of %d bytes at %d overflows buffer of %d bytes", len(data), offset, len(b.alloc.mapped))
	}
	copy(b.alloc.mapped[offset:], data)
	return nil
}

// BufferAllocator creates and destroys buffers. Device implements it.
type BufferAllocator interface {
	CreateBuffer(size int, usage core1_0.BufferUsageFlags, memoryUsage MemoryUsage) (*Buffer, error)
	DestroyBuffer(b *Buffer)
}

var _ BufferAllocator = (*Device)(nil)

// bufferAllocationInfo maps the public memory hint onto allocation flags.
// Host preferring buffers are mapped for sequential writes.
func bufferAllocationInfo(usage core1_0.BufferUsageFlags, memoryUsage MemoryUsage) AllocationCreateInfo {
	info := AllocationCreateInfo{Usage: memoryUsage}
	if memoryUsage == MemoryUsageAutoPreferHost {
		info.Flags |= AllocationMapped | AllocationHostAccessSequentialWrite
	}
	if usage&BufferUsageShaderDeviceAddress != 0 {
		info.Flags |= AllocationDeviceAddress
	}
	return info
}

func bufferNeedsDeviceAccess(usage core1_0.BufferUsageFlags) bool {
	return usage&^(core1_0.BufferUsageTransferSrc|core1_0.BufferUsageTransferDst) != 0
}

// CreateBuffer allocates a buffer of at least size bytes. When usage includes
// BufferUsageShaderDeviceAddress the buffer's Address is resolved.
func (d *Device) CreateBuffer(size int, usage core1_0.BufferUsageFlags, memoryUsage MemoryUsage) (*Buffer, error) {
	if size <= 0 {
		return nil, errors.AssertionFailedf("buffer size must be positive, got %d", size)
	}
	if usage&BufferUsageShaderDeviceAddress != 0 && !d.caps.BufferDeviceAddress {
		return nil, errors.Errorf("buffer device address requested but not supported by %s", d.caps.DeviceName)
	}

	handle, _, err := d.driver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating buffer of %d bytes", size)
	}

	memReqs := d.driver.GetBufferMemoryRequirements(handle)
	alloc, err := d.allocator.allocate(memReqs.Size, memReqs.MemoryTypeBits, bufferAllocationInfo(usage, memoryUsage), bufferNeedsDeviceAccess(usage))
	if err != nil {
		d.driver.DestroyBuffer(handle, nil)
		return nil, err
	}

	_, err = d.driver.BindBufferMemory(handle, alloc.memory, 0)
	if err != nil {
		d.allocator.free(alloc)
		d.driver.DestroyBuffer(handle, nil)
		return nil, errors.Wrap(err, "binding buffer memory")
	}

	buf := &Buffer{Handle: handle, Size: size, Usage: usage, alloc: alloc}
	if usage&BufferUsageShaderDeviceAddress != 0 {
		buf.Address, err = d.bufferDeviceAddress(handle)
		if err != nil {
			d.DestroyBuffer(buf)
			return nil, err
		}
	}
	return buf, nil
}

// DestroyBuffer releases b immediately. The caller guarantees the GPU is
// done with it; see DestroyBufferDeferred.
func (d *Device) DestroyBuffer(b *Buffer) {
	if b == nil {
		return
	}
	if b.Handle.Initialized() {
		d.driver.DestroyBuffer(b.Handle, nil)
	}
	d.allocator.free(b.alloc)
	*b = Buffer{}
}

// DestroyBufferDeferred destroys b once the frames in flight that may read it
// have retired.
func (d *Device) DestroyBufferDeferred(b *Buffer) {
	d.retired.Push(d.frameNumber, func() { d.DestroyBuffer(b) })
}

// BufferAddress returns the device address of b.
func (d *Device) BufferAddress(b *Buffer) uint64 {
	return b.Address
}

// UploadBuffer copies data into dst through a staging buffer and waits for
// the copy to finish. dst needs BufferUsageTransferDst.
func (d *Device) UploadBuffer(dst *Buffer, offset int, data []byte) error {
	if offset+len(data) > dst.Size {
		return errors.AssertionFailedf("upload of %d bytes at %d overflows buffer of %d bytes", len(data), offset, dst.Size)
	}

	staging, err := d.CreateBuffer(len(data), core1_0.BufferUsageTransferSrc, MemoryUsageAutoPreferHost)
	if err != nil {
		return err
	}
	defer d.DestroyBuffer(staging)

	if err := staging.Write(0, data); err != nil {
		return err
	}

	return d.ImmediateSubmit(func(cmd core1_0.CommandBuffer) error {
		return d.driver.CmdCopyBuffer(cmd, staging.Handle, dst.Handle, core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: offset,
			Size:      len(data),
		})
	})
}
