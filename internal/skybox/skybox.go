// Package skybox draws a cubemap behind everything else in the main pass.
package skybox

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/edbr/internal/camera"
	"github.com/vkngwrapper/edbr/internal/gfx"
)

type pushConstants struct {
	InvViewProj     mgl32.Mat4
	CameraPos       mgl32.Vec4
	SkyboxTextureID uint32
}

const pushConstantsSize = 64 + 16 + 4

// Pipeline draws a fullscreen triangle that samples the skybox cubemap by
// view direction. It only touches fragments still at the cleared far depth.
type Pipeline struct {
	pipeline        *gfx.Pipeline
	skyboxTextureID gfx.ImageID
}

// Init builds the pipeline for the first subpass of renderPass.
func (p *Pipeline) Init(dev *gfx.Device, renderPass core1_0.RenderPass, samples core1_0.SampleCountFlags) error {
	p.skyboxTextureID = gfx.NullImageID

	var err error
	p.pipeline, err = dev.CreateGraphicsPipeline(gfx.PipelineDesc{
		Name:             "skybox",
		VertexShader:     "fullscreen_triangle.vert.spv",
		FragmentShader:   "skybox.frag.spv",
		RenderPass:       renderPass,
		Samples:          samples,
		ColorAttachments: 1,
		CullMode:         core1_0.CullModeNone,
		// reverse-Z: the far plane is cleared to 0
		DepthTest:    true,
		DepthWrite:   false,
		DepthCompare: core1_0.CompareOpEqual,
		UseBindless:  true,
		PushSize:     pushConstantsSize,
		PushStages:   core1_0.StageFragment,
	})
	return errors.Wrap(err, "creating skybox pipeline")
}

// SetSkyboxImage selects the cubemap to draw. NullImageID disables the
// skybox.
func (p *Pipeline) SetSkyboxImage(id gfx.ImageID) {
	p.skyboxTextureID = id
}

func (p *Pipeline) SkyboxImage() gfx.ImageID {
	return p.skyboxTextureID
}

// Draw records the skybox into the current render pass.
func (p *Pipeline) Draw(rec gfx.Recorder, cmd core1_0.CommandBuffer, cam *camera.Camera) error {
	if p.skyboxTextureID == gfx.NullImageID {
		return nil
	}

	rec.BindPipeline(cmd, p.pipeline)
	rec.BindBindlessSet(cmd, p.pipeline)

	data, err := gfx.EncodeData(pushConstants{
		InvViewProj:     cam.ViewProj().Inv(),
		CameraPos:       cam.Position().Vec4(1),
		SkyboxTextureID: uint32(p.skyboxTextureID),
	})
	if err != nil {
		return err
	}
	rec.PushConstants(cmd, p.pipeline, data)
	rec.Draw(cmd, 3)
	return nil
}

func (p *Pipeline) Cleanup(dev *gfx.Device) {
	dev.DestroyPipeline(p.pipeline)
	p.pipeline = nil
}
