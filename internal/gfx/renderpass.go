package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// CreateDepthRenderPass creates a pass with a single cleared depth
// attachment that ends in finalLayout.
func (d *Device) CreateDepthRenderPass(depthFormat core1_0.Format, finalLayout core1_0.ImageLayout) (core1_0.RenderPass, error) {
	renderPass, _, err := d.driver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         depthFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    finalLayout,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 0,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass:    core1_0.SubpassExternal,
				DstSubpass:    0,
				SrcStageMask:  core1_0.PipelineStageFragmentShader,
				SrcAccessMask: core1_0.AccessShaderRead,
				DstStageMask:  core1_0.PipelineStageEarlyFragmentTests | core1_0.PipelineStageLateFragmentTests,
				DstAccessMask: core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	return renderPass, errors.Wrap(err, "creating depth render pass")
}

// CreateColorDepthRenderPass creates a pass with a cleared color attachment
// left in ColorAttachmentOptimal and a cleared depth attachment.
func (d *Device) CreateColorDepthRenderPass(colorFormat, depthFormat core1_0.Format, samples core1_0.SampleCountFlags) (core1_0.RenderPass, error) {
	renderPass, _, err := d.driver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         colorFormat,
				Samples:        samples,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutColorAttachmentOptimal,
			},
			{
				Format:         depthFormat,
				Samples:        samples,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpDontCare,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 1,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass:    core1_0.SubpassExternal,
				DstSubpass:    0,
				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests | core1_0.PipelineStageTransfer,
				SrcAccessMask: core1_0.AccessTransferRead,
				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	return renderPass, errors.Wrap(err, "creating color render pass")
}

func (d *Device) DestroyRenderPass(renderPass core1_0.RenderPass) {
	if renderPass.Initialized() {
		d.driver.DestroyRenderPass(renderPass, nil)
	}
}

// CreateFramebuffer creates a single layer framebuffer over attachments.
func (d *Device) CreateFramebuffer(renderPass core1_0.RenderPass, extent core1_0.Extent2D, attachments ...core1_0.ImageView) (core1_0.Framebuffer, error) {
	framebuffer, _, err := d.driver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  renderPass,
		Layers:      1,
		Attachments: attachments,
		Width:       extent.Width,
		Height:      extent.Height,
	})
	return framebuffer, errors.Wrap(err, "creating framebuffer")
}

func (d *Device) DestroyFramebuffer(framebuffer core1_0.Framebuffer) {
	if framebuffer.Initialized() {
		d.driver.DestroyFramebuffer(framebuffer, nil)
	}
}
