package csm

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/edbr/internal/camera"
	"github.com/vkngwrapper/edbr/internal/config"
	"github.com/vkngwrapper/edbr/internal/gfx"
	"github.com/vkngwrapper/edbr/internal/mesh"
	"golang.org/x/exp/slog"
)

const depthFormat = core1_0.FormatD32SignedFloat

type Options struct {
	// MapSize is the width and height of each cascade layer.
	MapSize int
	// CullBypassRadius: casters with a world bounding sphere at least this
	// large are drawn even when outside the cascade's light frustum.
	CullBypassRadius float32
	Logger           *slog.Logger
}

// OptionsFromConfig reads the shadow settings.
func OptionsFromConfig(cfg config.ShadowConfig, logger *slog.Logger) Options {
	return Options{
		MapSize:          cfg.MapSize,
		CullBypassRadius: cfg.CullBypassRadius,
		Logger:           logger,
	}
}

// MeshSource resolves draw command mesh IDs. mesh.Cache implements it.
type MeshSource interface {
	Get(id mesh.ID) *mesh.Mesh
}

var _ MeshSource = (*mesh.Cache)(nil)

type pushConstants struct {
	MVP          mgl32.Mat4
	VertexBuffer uint64
}

// pushConstantsSize is the encoded size of pushConstants.
const pushConstantsSize = 64 + 8

// Pipeline renders depth for every cascade into one layered shadow map.
type Pipeline struct {
	logger           *slog.Logger
	percents         [NumCascades]float32
	mapSize          int
	cullBypassRadius float32

	pipeline     *gfx.Pipeline
	renderPass   core1_0.RenderPass
	shadowMap    *gfx.Image
	shadowMapID  gfx.ImageID
	layerViews   [NumCascades]core1_0.ImageView
	framebuffers [NumCascades]core1_0.Framebuffer

	cascadeFarPlaneZs [NumCascades]float32
	lightSpaceTMs     [NumCascades]mgl32.Mat4
}

// Init builds the depth only pipeline and the shadow map. The shadow map is
// sampled through the bindless set as a 2D array at ShadowMapID.
func (p *Pipeline) Init(dev *gfx.Device, percents [NumCascades]float32, opts Options) error {
	shadowCfg := config.ShadowConfig{
		MapSize:          opts.MapSize,
		CascadePercents:  percents,
		CullBypassRadius: opts.CullBypassRadius,
	}
	if err := shadowCfg.Validate(); err != nil {
		return errors.WithAssertionFailure(err)
	}

	p.logger = opts.Logger
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.percents = percents
	p.mapSize = opts.MapSize
	p.cullBypassRadius = opts.CullBypassRadius
	p.shadowMapID = gfx.NullImageID

	if err := p.init(dev); err != nil {
		p.Cleanup(dev)
		return err
	}

	p.logger.Info("shadow maps ready",
		slog.Int("cascades", NumCascades),
		slog.Int("size", p.mapSize),
	)
	return nil
}

func (p *Pipeline) init(dev *gfx.Device) error {
	var err error
	// The pass ends in the layout the shadow map is sampled in.
	p.renderPass, err = dev.CreateDepthRenderPass(depthFormat, core1_0.ImageLayoutDepthStencilReadOnlyOptimal)
	if err != nil {
		return err
	}

	p.pipeline, err = dev.CreateGraphicsPipeline(gfx.PipelineDesc{
		Name:         "mesh depth only",
		VertexShader: "mesh_depth_only.vert.spv",
		RenderPass:   p.renderPass,
		CullMode:     core1_0.CullModeNone,
		DepthClamp:   true,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: core1_0.CompareOpGreaterOrEqual,
		PushSize:     pushConstantsSize,
		PushStages:   core1_0.StageVertex,
	})
	if err != nil {
		return err
	}

	p.shadowMap, err = dev.CreateImageRaw(gfx.ImageCreateInfo{
		Format: depthFormat,
		Usage:  core1_0.ImageUsageDepthStencilAttachment | core1_0.ImageUsageSampled,
		Extent: core1_0.Extent3D{Width: p.mapSize, Height: p.mapSize, Depth: 1},
		Layers: NumCascades,
	})
	if err != nil {
		return errors.Wrap(err, "creating shadow map")
	}
	p.shadowMap.Name = "CSM shadow map"

	extent := core1_0.Extent2D{Width: p.mapSize, Height: p.mapSize}
	for i := 0; i < NumCascades; i++ {
		p.layerViews[i], err = dev.CreateImageView(p.shadowMap, core1_0.ImageViewType2D, i, 1)
		if err != nil {
			return err
		}

		p.framebuffers[i], err = dev.CreateFramebuffer(p.renderPass, extent, p.layerViews[i])
		if err != nil {
			return errors.Wrapf(err, "cascade %d", i)
		}
	}

	// The default view covers every layer as a 2D array.
	p.shadowMapID, err = dev.AddImageToCache(p.shadowMap)
	return err
}

// Draw renders every cascade. Each cascade's depth pass runs even when
// nothing is drawn into it so its layer is cleared. When shadowsEnabled is
// false no caster is drawn.
func (p *Pipeline) Draw(rec gfx.Recorder, cmd core1_0.CommandBuffer, cam *camera.Camera, sunDir mgl32.Vec3, meshes MeshSource, drawCommands []mesh.DrawCommand, shadowsEnabled bool) error {
	splits := ComputeCascadeSplits(cam.ZNear(), cam.ZFar(), p.percents)
	extent := core1_0.Extent2D{Width: p.mapSize, Height: p.mapSize}

	for i, split := range splits {
		p.cascadeFarPlaneZs[i] = split.Far

		sub := subFrustum(cam, split)
		light := FitLightCamera(sub.FrustumCorners(), sunDir, p.mapSize)
		p.lightSpaceTMs[i] = light.ViewProj()

		err := rec.BeginRenderPass(cmd, gfx.RenderPassBegin{
			RenderPass:  p.renderPass,
			Framebuffer: p.framebuffers[i],
			Extent:      extent,
			// reverse-Z: 0 is the far plane
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueDepthStencil{Depth: 0, Stencil: 0},
			},
		})
		if err != nil {
			return errors.Wrapf(err, "cascade %d", i)
		}

		rec.BindPipeline(cmd, p.pipeline)
		rec.SetViewportScissor(cmd, extent)

		if shadowsEnabled {
			if err := p.drawCasters(rec, cmd, i, light.Frustum(), meshes, drawCommands); err != nil {
				rec.EndRenderPass(cmd)
				return err
			}
		}

		rec.EndRenderPass(cmd)
	}

	// Orders the depth writes of every layer before shaders sample the map.
	return rec.ImageBarrier(cmd, gfx.ImageBarrier{
		Image:     p.shadowMap,
		OldLayout: core1_0.ImageLayoutDepthStencilReadOnlyOptimal,
		NewLayout: core1_0.ImageLayoutDepthStencilReadOnlyOptimal,
		SrcStage:  core1_0.PipelineStageLateFragmentTests,
		SrcAccess: core1_0.AccessDepthStencilAttachmentWrite,
		DstStage:  core1_0.PipelineStageFragmentShader,
		DstAccess: core1_0.AccessShaderRead,
	})
}

func (p *Pipeline) drawCasters(rec gfx.Recorder, cmd core1_0.CommandBuffer, cascade int, frustum camera.Frustum, meshes MeshSource, drawCommands []mesh.DrawCommand) error {
	prevMeshID := mesh.NullID
	for i := range drawCommands {
		dc := &drawCommands[i]
		if !dc.CastShadow {
			continue
		}

		bounds := dc.WorldBounds
		if !frustum.SphereInside(bounds.Center, bounds.Radius) && bounds.Radius < p.cullBypassRadius {
			continue
		}

		m := meshes.Get(dc.MeshID)
		if m == nil {
			return errors.AssertionFailedf("draw command references unknown mesh %d", dc.MeshID)
		}

		if dc.MeshID != prevMeshID {
			prevMeshID = dc.MeshID
			rec.BindIndexBuffer(cmd, m.IndexBuffer)
		}

		data, err := gfx.EncodeData(pushConstants{
			MVP:          p.lightSpaceTMs[cascade].Mul4(dc.Transform),
			VertexBuffer: dc.VertexBufferAddress(m),
		})
		if err != nil {
			return err
		}
		rec.PushConstants(cmd, p.pipeline, data)
		rec.DrawIndexed(cmd, m.NumIndices)
	}
	return nil
}

// CascadeFarPlaneZs are the view space distances where each cascade ends,
// from the last Draw.
func (p *Pipeline) CascadeFarPlaneZs() [NumCascades]float32 {
	return p.cascadeFarPlaneZs
}

// LightSpaceTMs are each cascade's light view-projection, from the last
// Draw.
func (p *Pipeline) LightSpaceTMs() [NumCascades]mgl32.Mat4 {
	return p.lightSpaceTMs
}

func (p *Pipeline) ShadowMapID() gfx.ImageID {
	return p.shadowMapID
}

func (p *Pipeline) Percents() [NumCascades]float32 {
	return p.percents
}

// Cleanup destroys everything Init created. The GPU must be idle.
func (p *Pipeline) Cleanup(dev *gfx.Device) {
	for i := range p.framebuffers {
		dev.DestroyFramebuffer(p.framebuffers[i])
		dev.DestroyImageView(p.layerViews[i])
		p.framebuffers[i] = core1_0.Framebuffer{}
		p.layerViews[i] = core1_0.ImageView{}
	}

	if p.shadowMap != nil {
		if p.shadowMapID != gfx.NullImageID {
			if err := dev.DestroyCachedImage(p.shadowMapID); err != nil {
				p.logger.Error("releasing shadow map", slog.Any("error", err))
			}
		} else {
			dev.DestroyImage(p.shadowMap)
		}
	}
	p.shadowMap = nil
	p.shadowMapID = gfx.NullImageID

	dev.DestroyPipeline(p.pipeline)
	p.pipeline = nil
	dev.DestroyRenderPass(p.renderPass)
	p.renderPass = core1_0.RenderPass{}
}
