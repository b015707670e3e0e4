package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// frameData is what one frame in flight owns. A slot is reused every
// FrameOverlap frames, after its fence has signalled.
type frameData struct {
	commandPool   core1_0.CommandPool
	commandBuffer core1_0.CommandBuffer
	profiler      *FrameProfiler

	inFlight       core1_0.Fence
	imageAcquired  core1_0.Semaphore
	renderFinished core1_0.Semaphore
}

func (d *Device) createFrames() error {
	d.frames = make([]frameData, d.cfg.FrameOverlap)
	for i := range d.frames {
		frame := &d.frames[i]
		frame.profiler = NewFrameProfiler()

		var err error
		frame.commandPool, _, err = d.driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
			QueueFamilyIndex: d.graphicsFamily,
		})
		if err != nil {
			return errors.Wrapf(err, "creating command pool for frame %d", i)
		}

		frame.inFlight, _, err = d.driver.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			return errors.Wrapf(err, "creating fence for frame %d", i)
		}

		frame.imageAcquired, _, err = d.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return errors.Wrapf(err, "creating semaphore for frame %d", i)
		}

		frame.renderFinished, _, err = d.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return errors.Wrapf(err, "creating semaphore for frame %d", i)
		}
	}
	return nil
}

func (d *Device) cleanupFrames() {
	for _, frame := range d.frames {
		if frame.commandBuffer.Initialized() {
			d.driver.FreeCommandBuffers(frame.commandBuffer)
		}
		if frame.commandPool.Initialized() {
			d.driver.DestroyCommandPool(frame.commandPool, nil)
		}
		if frame.inFlight.Initialized() {
			d.driver.DestroyFence(frame.inFlight, nil)
		}
		if frame.imageAcquired.Initialized() {
			d.driver.DestroySemaphore(frame.imageAcquired, nil)
		}
		if frame.renderFinished.Initialized() {
			d.driver.DestroySemaphore(frame.renderFinished, nil)
		}
	}
	d.frames = nil
}

func (d *Device) currentFrame() *frameData {
	return &d.frames[d.CurrentFrameIndex()]
}

// BeginFrame waits until the current slot's previous submission is done,
// acquires a swapchain image and returns a command buffer ready to record.
// ErrSwapchainOutOfDate means the caller should RecreateSwapchain and skip
// the frame.
func (d *Device) BeginFrame() (core1_0.CommandBuffer, error) {
	slot := d.CurrentFrameIndex()
	frame := &d.frames[slot]

	_, err := d.driver.WaitForFences(true, common.NoTimeout, frame.inFlight)
	if err != nil {
		return core1_0.CommandBuffer{}, errors.Wrap(err, "waiting for frame fence")
	}

	if err := d.bindless.flush(slot); err != nil {
		return core1_0.CommandBuffer{}, err
	}

	overlap := uint64(len(d.frames))
	if d.frameNumber >= overlap {
		d.retired.Drain(d.frameNumber - overlap)
	}

	d.swapchainImageIndex, err = d.acquireImage(frame.imageAcquired)
	if err != nil {
		return core1_0.CommandBuffer{}, err
	}

	_, err = d.driver.ResetFences(frame.inFlight)
	if err != nil {
		return core1_0.CommandBuffer{}, errors.Wrap(err, "resetting frame fence")
	}

	if frame.commandBuffer.Initialized() {
		d.driver.FreeCommandBuffers(frame.commandBuffer)
		frame.commandBuffer = core1_0.CommandBuffer{}
	}
	buffers, _, err := d.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        frame.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return core1_0.CommandBuffer{}, errors.Wrap(err, "allocating frame command buffer")
	}
	frame.commandBuffer = buffers[0]

	_, err = d.driver.BeginCommandBuffer(frame.commandBuffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return core1_0.CommandBuffer{}, errors.Wrap(err, "beginning frame command buffer")
	}

	frame.profiler.Begin()
	return frame.commandBuffer, nil
}

// EndFrame copies drawImage onto the acquired swapchain image, submits cmd
// and presents. drawImage must be in ColorAttachmentOptimal; it is left in
// TransferSrcOptimal.
func (d *Device) EndFrame(cmd core1_0.CommandBuffer, drawImage *Image) error {
	frame := d.currentFrame()
	swapchainImage := d.swapchain.images[d.swapchainImageIndex]

	err := d.ImageBarrier(cmd, ImageBarrier{
		Image:     drawImage,
		OldLayout: core1_0.ImageLayoutColorAttachmentOptimal,
		NewLayout: core1_0.ImageLayoutTransferSrcOptimal,
		SrcStage:  core1_0.PipelineStageColorAttachmentOutput,
		SrcAccess: core1_0.AccessColorAttachmentWrite,
		DstStage:  core1_0.PipelineStageTransfer,
		DstAccess: core1_0.AccessTransferRead,
	})
	if err != nil {
		return err
	}

	err = d.ImageBarrier(cmd, ImageBarrier{
		Image:     swapchainImage,
		OldLayout: core1_0.ImageLayoutUndefined,
		NewLayout: core1_0.ImageLayoutTransferDstOptimal,
		SrcStage:  core1_0.PipelineStageTransfer,
		DstStage:  core1_0.PipelineStageTransfer,
		DstAccess: core1_0.AccessTransferWrite,
	})
	if err != nil {
		return err
	}

	if err := d.blitImage(cmd, drawImage, swapchainImage); err != nil {
		return err
	}

	err = d.ImageBarrier(cmd, ImageBarrier{
		Image:     swapchainImage,
		OldLayout: core1_0.ImageLayoutTransferDstOptimal,
		NewLayout: khr_swapchain.ImageLayoutPresentSrc,
		SrcStage:  core1_0.PipelineStageTransfer,
		SrcAccess: core1_0.AccessTransferWrite,
		DstStage:  core1_0.PipelineStageBottomOfPipe,
	})
	if err != nil {
		return err
	}

	_, err = d.driver.EndCommandBuffer(cmd)
	if err != nil {
		return errors.Wrap(err, "ending frame command buffer")
	}

	_, err = d.driver.QueueSubmit(d.graphicsQueue, &frame.inFlight,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{frame.imageAcquired},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageTransfer},
			CommandBuffers:   []core1_0.CommandBuffer{cmd},
			SignalSemaphores: []core1_0.Semaphore{frame.renderFinished},
		},
	)
	if err != nil {
		return errors.Wrap(err, "submitting frame")
	}

	// The frame was submitted, so it counts even if presenting fails.
	presentErr := d.present(frame.renderFinished, d.swapchainImageIndex)
	frame.profiler.End()
	d.frameNumber++
	return presentErr
}

// blitImage scales src's full extent onto dst's.
func (d *Device) blitImage(cmd core1_0.CommandBuffer, src, dst *Image) error {
	filter := core1_0.FilterLinear
	if !d.caps.SupportsLinearBlit(src.Format) {
		filter = core1_0.FilterNearest
	}

	err := d.driver.CmdBlitImage(cmd,
		src.Handle, core1_0.ImageLayoutTransferSrcOptimal,
		dst.Handle, core1_0.ImageLayoutTransferDstOptimal,
		[]core1_0.ImageBlit{
			{
				SrcSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: src.Extent.Width, Y: src.Extent.Height, Z: 1},
				},
				DstSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				DstOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: dst.Extent.Width, Y: dst.Extent.Height, Z: 1},
				},
			},
		},
		filter)
	return errors.Wrap(err, "blitting draw image to swapchain")
}

// FrameNumber counts submitted frames.
func (d *Device) FrameNumber() uint64 {
	return d.frameNumber
}

// CurrentFrameIndex is the frame slot being recorded.
func (d *Device) CurrentFrameIndex() int {
	return int(d.frameNumber % uint64(len(d.frames)))
}

// FrameOverlap is the number of frames in flight.
func (d *Device) FrameOverlap() int {
	return len(d.frames)
}

// FrameProfiler times the CPU side of the current slot's frames.
func (d *Device) FrameProfiler() *FrameProfiler {
	return d.currentFrame().profiler
}

func (d *Device) WaitIdle() error {
	_, err := d.driver.DeviceWaitIdle()
	return errors.Wrap(err, "waiting for device idle")
}
