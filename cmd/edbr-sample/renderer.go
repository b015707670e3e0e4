package main

import (
	"math"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/edbr/internal/camera"
	"github.com/vkngwrapper/edbr/internal/config"
	"github.com/vkngwrapper/edbr/internal/csm"
	"github.com/vkngwrapper/edbr/internal/gfx"
	"github.com/vkngwrapper/edbr/internal/mesh"
	"github.com/vkngwrapper/edbr/internal/skybox"
	"golang.org/x/exp/slog"
)

const drawImageFormat = core1_0.FormatR16G16B16A16SignedFloat

// sceneData is read by the mesh shaders through its buffer address.
type sceneData struct {
	ViewProj          mgl32.Mat4
	CameraPos         mgl32.Vec4
	CameraFront       mgl32.Vec4
	SunDirection      mgl32.Vec4
	CascadeFarPlaneZs [csm.NumCascades]float32
	LightSpaceTMs     [csm.NumCascades]mgl32.Mat4
	ShadowMapID       uint32
	_                 [3]uint32
}

type meshPushConstants struct {
	Transform    mgl32.Mat4
	SceneData    uint64
	VertexBuffer uint64
	TextureID    uint32
	_            uint32
}

const meshPushConstantsSize = 64 + 8 + 8 + 4 + 4

type renderer struct {
	dev    *gfx.Device
	cfg    config.Config
	logger *slog.Logger

	drawImage   *gfx.Image
	depthImage  *gfx.Image
	renderPass  core1_0.RenderPass
	framebuffer core1_0.Framebuffer

	meshPipeline *gfx.Pipeline
	skybox       skybox.Pipeline
	csm          csm.Pipeline
	sceneBuffer  gfx.NBuffer

	meshes       *mesh.Cache
	meshPath     string
	drawCommands []mesh.DrawCommand
	textureID    gfx.ImageID

	camera camera.Camera
	sunDir mgl32.Vec3
	start  time.Time
}

func newRenderer(dev *gfx.Device, cfg config.Config, logger *slog.Logger) (*renderer, error) {
	r := &renderer{
		dev:       dev,
		cfg:       cfg,
		logger:    logger,
		meshes:    mesh.NewCache(dev, logger),
		textureID: gfx.WhiteImageID,
		sunDir:    mgl32.Vec3{-0.5, -1, -0.3}.Normalize(),
		start:     time.Now(),
	}

	if err := r.init(); err != nil {
		r.cleanup()
		return nil, err
	}
	return r, nil
}

func (r *renderer) init() error {
	extent := core1_0.Extent3D{Width: r.cfg.Width, Height: r.cfg.Height, Depth: 1}

	var err error
	r.drawImage, err = r.dev.CreateImageRaw(gfx.ImageCreateInfo{
		Format: drawImageFormat,
		Usage:  core1_0.ImageUsageColorAttachment | core1_0.ImageUsageTransferSrc,
		Extent: extent,
	})
	if err != nil {
		return errors.Wrap(err, "creating draw image")
	}

	depthFormat := r.dev.Capabilities().DepthFormat
	r.depthImage, err = r.dev.CreateImageRaw(gfx.ImageCreateInfo{
		Format: depthFormat,
		Usage:  core1_0.ImageUsageDepthStencilAttachment,
		Extent: extent,
	})
	if err != nil {
		return errors.Wrap(err, "creating depth image")
	}

	r.renderPass, err = r.dev.CreateColorDepthRenderPass(drawImageFormat, depthFormat, core1_0.Samples1)
	if err != nil {
		return err
	}

	r.framebuffer, err = r.dev.CreateFramebuffer(r.renderPass, r.drawImage.Extent2D(), r.drawImage.View, r.depthImage.View)
	if err != nil {
		return err
	}

	r.meshPipeline, err = r.dev.CreateGraphicsPipeline(gfx.PipelineDesc{
		Name:             "mesh",
		VertexShader:     "mesh.vert.spv",
		FragmentShader:   "mesh.frag.spv",
		RenderPass:       r.renderPass,
		ColorAttachments: 1,
		CullMode:         core1_0.CullModeBack,
		DepthTest:        true,
		DepthWrite:       true,
		DepthCompare:     core1_0.CompareOpGreaterOrEqual,
		UseBindless:      true,
		PushSize:         meshPushConstantsSize,
		PushStages:       core1_0.StageVertex | core1_0.StageFragment,
	})
	if err != nil {
		return err
	}

	if err := r.skybox.Init(r.dev, r.renderPass, core1_0.Samples1); err != nil {
		return err
	}

	err = r.csm.Init(r.dev, r.cfg.Shadows.CascadePercents, csm.OptionsFromConfig(r.cfg.Shadows, r.logger))
	if err != nil {
		return err
	}

	sceneBytes, err := gfx.EncodeData(sceneData{})
	if err != nil {
		return err
	}
	err = r.sceneBuffer.Init(r.dev,
		core1_0.BufferUsageStorageBuffer|gfx.BufferUsageShaderDeviceAddress,
		len(sceneBytes), r.dev.FrameOverlap(), "scene data")
	if err != nil {
		return err
	}

	r.camera.Init(mgl32.DegToRad(60), 0.1, 200, float32(r.cfg.Width)/float32(r.cfg.Height))
	return nil
}

// loadScene loads the mesh, its texture and the skybox. Missing content is
// logged and skipped.
func (r *renderer) loadScene(meshPath, texturePath, skyboxDir string) {
	assets := r.cfg.AssetDir

	r.meshPath = filepath.Join(assets, meshPath)
	meshID, err := r.meshes.LoadOBJ(r.meshPath, "")
	if err != nil {
		r.logger.Warn("mesh not loaded", slog.Any("error", err))
	} else {
		m := r.meshes.Get(meshID)
		// OBJ files are Z up.
		transform := mgl32.HomogRotate3DX(mgl32.DegToRad(-90))
		r.drawCommands = append(r.drawCommands, mesh.NewDrawCommand(meshID, m, transform, true))
	}

	r.textureID, err = r.dev.LoadImageFromFile(filepath.Join(assets, texturePath), core1_0.FormatR8G8B8A8SRGB, core1_0.ImageUsageSampled, true)
	if err != nil {
		r.logger.Warn("texture not loaded, using white", slog.Any("error", err))
		r.textureID = gfx.WhiteImageID
	}

	skyboxID, err := r.dev.LoadCubemap(filepath.Join(assets, skyboxDir))
	if err != nil {
		r.logger.Warn("skybox not loaded", slog.Any("error", err))
		skyboxID = gfx.NullImageID
	}
	r.skybox.SetSkyboxImage(skyboxID)
}

// reloadMesh rereads the scene mesh from disk while frames are in flight.
func (r *renderer) reloadMesh() {
	for i := range r.drawCommands {
		dc := &r.drawCommands[i]
		if err := r.meshes.ReloadOBJ(dc.MeshID, r.meshPath, ""); err != nil {
			r.logger.Warn("mesh not reloaded", slog.Any("error", err))
			return
		}
		*dc = mesh.NewDrawCommand(dc.MeshID, r.meshes.Get(dc.MeshID), dc.Transform, dc.CastShadow)
	}
}

// updateCamera orbits the scene.
func (r *renderer) updateCamera() {
	angle := time.Since(r.start).Seconds() * 0.2
	r.camera.SetPosition(mgl32.Vec3{4 * float32(math.Cos(angle)), 2, 4 * float32(math.Sin(angle))})
	r.camera.LookAt(mgl32.Vec3{0, 0.5, 0}, mgl32.Vec3{0, 1, 0})
}

func (r *renderer) drawFrame() error {
	cmd, err := r.dev.BeginFrame()
	if errors.Is(err, gfx.ErrSwapchainOutOfDate) {
		return r.dev.RecreateSwapchain()
	} else if err != nil {
		return err
	}

	r.updateCamera()

	err = r.csm.Draw(r.dev, cmd, &r.camera, r.sunDir, r.meshes, r.drawCommands, r.cfg.Shadows.Enabled)
	if err != nil {
		return err
	}

	sceneBytes, err := gfx.EncodeData(r.currentSceneData())
	if err != nil {
		return err
	}
	err = r.sceneBuffer.UploadNewData(r.dev, cmd, r.dev.CurrentFrameIndex(), sceneBytes)
	if err != nil {
		return err
	}

	if err := r.drawMainPass(cmd); err != nil {
		return err
	}

	err = r.dev.EndFrame(cmd, r.drawImage)
	if errors.Is(err, gfx.ErrSwapchainOutOfDate) {
		return r.dev.RecreateSwapchain()
	} else if err != nil {
		return err
	}

	if n := r.dev.FrameNumber(); n%600 == 0 {
		r.logger.Debug("frame time",
			slog.Uint64("frame", n),
			slog.Duration("cpuAverage", r.dev.FrameProfiler().Average()),
		)
	}
	return nil
}

func (r *renderer) currentSceneData() sceneData {
	return sceneData{
		ViewProj:          r.camera.ViewProj(),
		CameraPos:         r.camera.Position().Vec4(1),
		CameraFront:       r.camera.Front().Vec4(0),
		SunDirection:      r.sunDir.Vec4(0),
		CascadeFarPlaneZs: r.csm.CascadeFarPlaneZs(),
		LightSpaceTMs:     r.csm.LightSpaceTMs(),
		ShadowMapID:       uint32(r.csm.ShadowMapID()),
	}
}

func (r *renderer) drawMainPass(cmd core1_0.CommandBuffer) error {
	extent := r.drawImage.Extent2D()
	err := r.dev.BeginRenderPass(cmd, gfx.RenderPassBegin{
		RenderPass:  r.renderPass,
		Framebuffer: r.framebuffer,
		Extent:      extent,
		ClearValues: []core1_0.ClearValue{
			core1_0.ClearValueFloat{0, 0, 0, 1},
			core1_0.ClearValueDepthStencil{Depth: 0, Stencil: 0},
		},
	})
	if err != nil {
		return err
	}
	defer r.dev.EndRenderPass(cmd)

	r.dev.BindPipeline(cmd, r.meshPipeline)
	r.dev.BindBindlessSet(cmd, r.meshPipeline)
	r.dev.SetViewportScissor(cmd, extent)

	frustum := r.camera.Frustum()
	prevMeshID := mesh.NullID
	for i := range r.drawCommands {
		dc := &r.drawCommands[i]
		if !frustum.SphereInside(dc.WorldBounds.Center, dc.WorldBounds.Radius) {
			continue
		}

		m := r.meshes.Get(dc.MeshID)
		if dc.MeshID != prevMeshID {
			prevMeshID = dc.MeshID
			r.dev.BindIndexBuffer(cmd, m.IndexBuffer)
		}

		data, err := gfx.EncodeData(meshPushConstants{
			Transform:    dc.Transform,
			SceneData:    r.sceneBuffer.Buffer().Address,
			VertexBuffer: dc.VertexBufferAddress(m),
			TextureID:    uint32(r.textureID),
		})
		if err != nil {
			return err
		}
		r.dev.PushConstants(cmd, r.meshPipeline, data)
		r.dev.DrawIndexed(cmd, m.NumIndices)
	}

	return r.skybox.Draw(r.dev, cmd, &r.camera)
}

// cleanup releases what init created. It tolerates a partial init.
func (r *renderer) cleanup() {
	if err := r.dev.WaitIdle(); err != nil {
		r.logger.Error("waiting for idle", slog.Any("error", err))
	}

	r.meshes.Cleanup()
	r.sceneBuffer.Cleanup(r.dev)
	r.csm.Cleanup(r.dev)
	r.skybox.Cleanup(r.dev)
	r.dev.DestroyPipeline(r.meshPipeline)
	r.dev.DestroyFramebuffer(r.framebuffer)
	r.dev.DestroyRenderPass(r.renderPass)
	if r.depthImage != nil {
		r.dev.DestroyImage(r.depthImage)
	}
	if r.drawImage != nil {
		r.dev.DestroyImage(r.drawImage)
	}
}
