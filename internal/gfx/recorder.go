package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// BufferBarrier is a whole-buffer memory barrier.
type BufferBarrier struct {
	Buffer    *Buffer
	SrcStage  core1_0.PipelineStageFlags
	SrcAccess core1_0.AccessFlags
	DstStage  core1_0.PipelineStageFlags
	DstAccess core1_0.AccessFlags
}

// ImageBarrier transitions a range of an image. A zero LayerCount or
// MipCount covers every layer or mip from the base.
type ImageBarrier struct {
	Image     *Image
	OldLayout core1_0.ImageLayout
	NewLayout core1_0.ImageLayout
	SrcStage  core1_0.PipelineStageFlags
	SrcAccess core1_0.AccessFlags
	DstStage  core1_0.PipelineStageFlags
	DstAccess core1_0.AccessFlags

	BaseLayer  int
	LayerCount int
	BaseMip    int
	MipCount   int
}

func (b ImageBarrier) subresourceRange() core1_0.ImageSubresourceRange {
	layers := b.LayerCount
	if layers == 0 {
		layers = b.Image.Layers - b.BaseLayer
	}
	mips := b.MipCount
	if mips == 0 {
		mips = b.Image.MipLevels - b.BaseMip
	}
	return core1_0.ImageSubresourceRange{
		AspectMask:     b.Image.Aspect(),
		BaseMipLevel:   b.BaseMip,
		LevelCount:     mips,
		BaseArrayLayer: b.BaseLayer,
		LayerCount:     layers,
	}
}

type RenderPassBegin struct {
	RenderPass  core1_0.RenderPass
	Framebuffer core1_0.Framebuffer
	Extent      core1_0.Extent2D
	ClearValues []core1_0.ClearValue
}

// Recorder records the commands the render passes issue. Device records
// straight into Vulkan command buffers; tests substitute a fake.
type Recorder interface {
	BufferBarrier(cmd core1_0.CommandBuffer, barrier BufferBarrier) error
	ImageBarrier(cmd core1_0.CommandBuffer, barrier ImageBarrier) error
	CopyBuffer(cmd core1_0.CommandBuffer, src, dst *Buffer, size int) error

	BeginRenderPass(cmd core1_0.CommandBuffer, begin RenderPassBegin) error
	EndRenderPass(cmd core1_0.CommandBuffer)

	BindPipeline(cmd core1_0.CommandBuffer, pipeline *Pipeline)
	BindBindlessSet(cmd core1_0.CommandBuffer, pipeline *Pipeline)
	SetViewportScissor(cmd core1_0.CommandBuffer, extent core1_0.Extent2D)
	BindIndexBuffer(cmd core1_0.CommandBuffer, buffer *Buffer)
	PushConstants(cmd core1_0.CommandBuffer, pipeline *Pipeline, data []byte)
	DrawIndexed(cmd core1_0.CommandBuffer, indexCount int)
	Draw(cmd core1_0.CommandBuffer, vertexCount int)
}

var _ Recorder = (*Device)(nil)

func (d *Device) BufferBarrier(cmd core1_0.CommandBuffer, barrier BufferBarrier) error {
	err := d.driver.CmdPipelineBarrier(cmd, barrier.SrcStage, barrier.DstStage, 0, nil,
		[]core1_0.BufferMemoryBarrier{
			{
				SrcAccessMask:       barrier.SrcAccess,
				DstAccessMask:       barrier.DstAccess,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Buffer:              barrier.Buffer.Handle,
				Offset:              0,
				Size:                barrier.Buffer.Size,
			},
		}, nil)
	return errors.Wrap(err, "recording buffer barrier")
}

func (d *Device) ImageBarrier(cmd core1_0.CommandBuffer, barrier ImageBarrier) error {
	err := d.driver.CmdPipelineBarrier(cmd, barrier.SrcStage, barrier.DstStage, 0, nil, nil,
		[]core1_0.ImageMemoryBarrier{
			{
				OldLayout:           barrier.OldLayout,
				NewLayout:           barrier.NewLayout,
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               barrier.Image.Handle,
				SubresourceRange:    barrier.subresourceRange(),
				SrcAccessMask:       barrier.SrcAccess,
				DstAccessMask:       barrier.DstAccess,
			},
		})
	return errors.Wrapf(err, "transitioning image %q from %s to %s", barrier.Image.Name, barrier.OldLayout, barrier.NewLayout)
}

func (d *Device) CopyBuffer(cmd core1_0.CommandBuffer, src, dst *Buffer, size int) error {
	err := d.driver.CmdCopyBuffer(cmd, src.Handle, dst.Handle, core1_0.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      size,
	})
	return errors.Wrap(err, "recording buffer copy")
}

func (d *Device) BeginRenderPass(cmd core1_0.CommandBuffer, begin RenderPassBegin) error {
	err := d.driver.CmdBeginRenderPass(cmd, core1_0.SubpassContentsInline, core1_0.RenderPassBeginInfo{
		RenderPass:  begin.RenderPass,
		Framebuffer: begin.Framebuffer,
		RenderArea: core1_0.Rect2D{
			Offset: core1_0.Offset2D{X: 0, Y: 0},
			Extent: begin.Extent,
		},
		ClearValues: begin.ClearValues,
	})
	return errors.Wrap(err, "beginning render pass")
}

func (d *Device) EndRenderPass(cmd core1_0.CommandBuffer) {
	d.driver.CmdEndRenderPass(cmd)
}

func (d *Device) BindPipeline(cmd core1_0.CommandBuffer, pipeline *Pipeline) {
	d.driver.CmdBindPipeline(cmd, core1_0.PipelineBindPointGraphics, pipeline.Handle)
}

// BindBindlessSet binds the current frame's bindless set at set 0.
func (d *Device) BindBindlessSet(cmd core1_0.CommandBuffer, pipeline *Pipeline) {
	d.driver.CmdBindDescriptorSets(cmd, core1_0.PipelineBindPointGraphics, pipeline.Layout, 0,
		[]core1_0.DescriptorSet{d.bindless.set(d.CurrentFrameIndex())}, nil)
}

func (d *Device) SetViewportScissor(cmd core1_0.CommandBuffer, extent core1_0.Extent2D) {
	d.driver.CmdSetViewport(cmd, []core1_0.Viewport{
		{
			X:        0,
			Y:        0,
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		},
	})
	d.driver.CmdSetScissor(cmd, []core1_0.Rect2D{
		{
			Offset: core1_0.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
	})
}

func (d *Device) BindIndexBuffer(cmd core1_0.CommandBuffer, buffer *Buffer) {
	d.driver.CmdBindIndexBuffer(cmd, buffer.Handle, 0, core1_0.IndexTypeUInt32)
}

func (d *Device) PushConstants(cmd core1_0.CommandBuffer, pipeline *Pipeline, data []byte) {
	d.driver.CmdPushConstants(cmd, pipeline.Layout, pipeline.PushStages, 0, data)
}

func (d *Device) DrawIndexed(cmd core1_0.CommandBuffer, indexCount int) {
	d.driver.CmdDrawIndexed(cmd, indexCount, 1, 0, 0, 0)
}

func (d *Device) Draw(cmd core1_0.CommandBuffer, vertexCount int) {
	d.driver.CmdDraw(cmd, vertexCount, 1, 0, 0)
}
