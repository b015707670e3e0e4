package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// NBuffer is a device local buffer updated every frame through one staging
// buffer per frame in flight. Writing frame i's staging buffer never races
// the GPU reading frame i-1's.
type NBuffer struct {
	name        string
	buffer      *Buffer
	staging     []*Buffer
	size        int
	initialized bool
}

// Init creates the device buffer with usage|TransferDst and framesInFlight
// mapped staging buffers, all of size bytes.
func (n *NBuffer) Init(alloc BufferAllocator, usage core1_0.BufferUsageFlags, size, framesInFlight int, name string) error {
	if n.initialized {
		return errors.AssertionFailedf("NBuffer %q initialized twice", name)
	}
	if framesInFlight <= 0 {
		return errors.AssertionFailedf("NBuffer %q needs at least one frame in flight, got %d", name, framesInFlight)
	}
	if size <= 0 {
		return errors.AssertionFailedf("NBuffer %q needs a positive size, got %d", name, size)
	}

	n.name = name
	n.size = size

	var err error
	n.buffer, err = alloc.CreateBuffer(size, usage|core1_0.BufferUsageTransferDst, MemoryUsageAutoPreferDevice)
	if err != nil {
		return errors.Wrapf(err, "creating NBuffer %q", name)
	}

	n.staging = make([]*Buffer, 0, framesInFlight)
	for i := 0; i < framesInFlight; i++ {
		staging, err := alloc.CreateBuffer(size, core1_0.BufferUsageTransferSrc, MemoryUsageAutoPreferHost)
		if err != nil {
			n.Cleanup(alloc)
			return errors.Wrapf(err, "creating staging buffer %d of NBuffer %q", i, name)
		}
		n.staging = append(n.staging, staging)
	}

	n.initialized = true
	return nil
}

// UploadNewData copies data into frameIndex's staging buffer and records the
// copy into the device buffer, fenced by barriers against every earlier and
// later use of the device buffer.
func (n *NBuffer) UploadNewData(rec Recorder, cmd core1_0.CommandBuffer, frameIndex int, data []byte) error {
	if !n.initialized {
		return errors.AssertionFailedf("upload to uninitialized NBuffer %q", n.name)
	}
	if frameIndex < 0 || frameIndex >= len(n.staging) {
		return errors.AssertionFailedf("NBuffer %q frame index %d out of range [0,%d)", n.name, frameIndex, len(n.staging))
	}
	if len(data) > n.size {
		return errors.AssertionFailedf("NBuffer %q upload of %d bytes exceeds capacity %d", n.name, len(data), n.size)
	}
	if len(data) == 0 {
		return nil
	}

	err := rec.BufferBarrier(cmd, BufferBarrier{
		Buffer:    n.buffer,
		SrcStage:  core1_0.PipelineStageAllCommands,
		SrcAccess: core1_0.AccessMemoryRead,
		DstStage:  core1_0.PipelineStageTransfer,
		DstAccess: core1_0.AccessTransferWrite,
	})
	if err != nil {
		return err
	}

	staging := n.staging[frameIndex]
	if err := staging.Write(0, data); err != nil {
		return err
	}
	if err := rec.CopyBuffer(cmd, staging, n.buffer, len(data)); err != nil {
		return err
	}

	return rec.BufferBarrier(cmd, BufferBarrier{
		Buffer:    n.buffer,
		SrcStage:  core1_0.PipelineStageTransfer,
		SrcAccess: core1_0.AccessTransferWrite,
		DstStage:  core1_0.PipelineStageAllCommands,
		DstAccess: core1_0.AccessMemoryRead | core1_0.AccessMemoryWrite,
	})
}

// Buffer is the device buffer shaders read.
func (n *NBuffer) Buffer() *Buffer {
	return n.buffer
}

func (n *NBuffer) Size() int {
	return n.size
}

// Cleanup destroys every buffer. The caller makes sure the GPU is done
// with them.
func (n *NBuffer) Cleanup(alloc BufferAllocator) {
	for _, staging := range n.staging {
		alloc.DestroyBuffer(staging)
	}
	if n.buffer != nil {
		alloc.DestroyBuffer(n.buffer)
	}
	*n = NBuffer{}
}
