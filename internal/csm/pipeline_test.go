package csm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/edbr/internal/camera"
	"github.com/vkngwrapper/edbr/internal/gfx"
	"github.com/vkngwrapper/edbr/internal/mesh"
	"golang.org/x/exp/slog"
)

type recorder struct {
	ops      []string
	begins   []gfx.RenderPassBegin
	pushes   [][]byte
	indexed  []*gfx.Buffer
	barriers []gfx.ImageBarrier
}

func (r *recorder) BufferBarrier(cmd core1_0.CommandBuffer, barrier gfx.BufferBarrier) error {
	r.ops = append(r.ops, "buffer-barrier")
	return nil
}

func (r *recorder) ImageBarrier(cmd core1_0.CommandBuffer, barrier gfx.ImageBarrier) error {
	r.ops = append(r.ops, "image-barrier")
	r.barriers = append(r.barriers, barrier)
	return nil
}

func (r *recorder) CopyBuffer(cmd core1_0.CommandBuffer, src, dst *gfx.Buffer, size int) error {
	r.ops = append(r.ops, "copy")
	return nil
}

func (r *recorder) BeginRenderPass(cmd core1_0.CommandBuffer, begin gfx.RenderPassBegin) error {
	r.ops = append(r.ops, "begin")
	r.begins = append(r.begins, begin)
	return nil
}

func (r *recorder) EndRenderPass(cmd core1_0.CommandBuffer) {
	r.ops = append(r.ops, "end")
}

func (r *recorder) BindPipeline(cmd core1_0.CommandBuffer, pipeline *gfx.Pipeline) {
	r.ops = append(r.ops, "pipeline")
}

func (r *recorder) BindBindlessSet(cmd core1_0.CommandBuffer, pipeline *gfx.Pipeline) {
	r.ops = append(r.ops, "bindless")
}

func (r *recorder) SetViewportScissor(cmd core1_0.CommandBuffer, extent core1_0.Extent2D) {
	r.ops = append(r.ops, "viewport")
}

func (r *recorder) BindIndexBuffer(cmd core1_0.CommandBuffer, buffer *gfx.Buffer) {
	r.ops = append(r.ops, "index")
	r.indexed = append(r.indexed, buffer)
}

func (r *recorder) PushConstants(cmd core1_0.CommandBuffer, pipeline *gfx.Pipeline, data []byte) {
	r.ops = append(r.ops, "push")
	r.pushes = append(r.pushes, data)
}

func (r *recorder) DrawIndexed(cmd core1_0.CommandBuffer, indexCount int) {
	r.ops = append(r.ops, "draw-indexed")
}

func (r *recorder) Draw(cmd core1_0.CommandBuffer, vertexCount int) {
	r.ops = append(r.ops, "draw")
}

type meshMap map[mesh.ID]*mesh.Mesh

func (m meshMap) Get(id mesh.ID) *mesh.Mesh {
	return m[id]
}

func newTestPipeline() *Pipeline {
	return &Pipeline{
		logger:           slog.Default(),
		percents:         defaultPercents,
		mapSize:          1024,
		cullBypassRadius: 2,
		pipeline:         &gfx.Pipeline{},
		shadowMap: &gfx.Image{
			Format:    depthFormat,
			Layers:    NumCascades,
			MipLevels: 1,
		},
	}
}

func testScene() (meshMap, []mesh.DrawCommand) {
	meshes := meshMap{
		0: {
			VertexBuffer: &gfx.Buffer{Address: 0x100},
			IndexBuffer:  &gfx.Buffer{Size: 36},
			NumIndices:   9,
			Bounds:       camera.Sphere{Radius: 1},
		},
		1: {
			VertexBuffer: &gfx.Buffer{Address: 0x200},
			IndexBuffer:  &gfx.Buffer{Size: 12},
			NumIndices:   3,
			Bounds:       camera.Sphere{Radius: 1},
		},
	}

	place := func(id mesh.ID, pos mgl32.Vec3, scale float32, castShadow bool) mesh.DrawCommand {
		transform := mgl32.Translate3D(pos.X(), pos.Y(), pos.Z()).Mul4(mgl32.Scale3D(scale, scale, scale))
		return mesh.NewDrawCommand(id, meshes[id], transform, castShadow)
	}

	return meshes, []mesh.DrawCommand{
		place(0, mgl32.Vec3{0, 0, -5}, 1, true),
		place(0, mgl32.Vec3{1, 0, -6}, 1, true),
		// far outside every cascade and small: culled
		place(1, mgl32.Vec3{1000, 0, 0}, 0.5, true),
		// far outside but large: drawn anyway
		place(1, mgl32.Vec3{1000, 0, 0}, 5, true),
		place(0, mgl32.Vec3{0, 0, -4}, 1, false),
	}
}

func mainCamera() *camera.Camera {
	var cam camera.Camera
	cam.Init(mgl32.DegToRad(90), 0.1, 100, 16.0/9.0)
	return &cam
}

func TestDraw(t *testing.T) {
	p := newTestPipeline()
	rec := &recorder{}
	meshes, drawCommands := testScene()

	err := p.Draw(rec, core1_0.CommandBuffer{}, mainCamera(), testSunDir, meshes, drawCommands, true)
	require.NoError(t, err)

	cascadeOps := []string{
		"begin", "pipeline", "viewport",
		"index", "push", "draw-indexed",
		"push", "draw-indexed",
		"index", "push", "draw-indexed",
		"end",
	}
	var expected []string
	for i := 0; i < NumCascades; i++ {
		expected = append(expected, cascadeOps...)
	}
	expected = append(expected, "image-barrier")
	assert.Equal(t, expected, rec.ops)

	require.Len(t, rec.begins, NumCascades)
	for i, begin := range rec.begins {
		assert.Equal(t, core1_0.Extent2D{Width: 1024, Height: 1024}, begin.Extent)
		assert.Equal(t, []core1_0.ClearValue{core1_0.ClearValueDepthStencil{Depth: 0}}, begin.ClearValues, "cascade %d", i)
	}

	farZs := p.CascadeFarPlaneZs()
	for i, want := range []float32{13, 33, 66, 100} {
		assert.InDelta(t, want, farZs[i], 1e-4)
	}

	barrier := rec.barriers[0]
	assert.Same(t, p.shadowMap, barrier.Image)
	assert.Equal(t, core1_0.ImageLayoutDepthStencilReadOnlyOptimal, barrier.NewLayout)
	assert.Equal(t, core1_0.AccessShaderRead, barrier.DstAccess)
	assert.Zero(t, barrier.LayerCount, "barrier covers every cascade")
}

func TestDrawPushConstants(t *testing.T) {
	p := newTestPipeline()
	rec := &recorder{}
	meshes, drawCommands := testScene()

	require.NoError(t, p.Draw(rec, core1_0.CommandBuffer{}, mainCamera(), testSunDir, meshes, drawCommands, true))

	require.NotEmpty(t, rec.pushes)
	first := rec.pushes[0]
	require.Len(t, first, pushConstantsSize)

	var decoded pushConstants
	require.NoError(t, binary.Read(bytes.NewReader(first), common.ByteOrder, &decoded))
	want := p.LightSpaceTMs()[0].Mul4(drawCommands[0].Transform)
	assert.True(t, decoded.MVP.ApproxEqualThreshold(want, 1e-5))
	assert.Equal(t, uint64(0x100), decoded.VertexBuffer)

	skinned := drawCommands[:1]
	skinned[0].SkinnedVertexBuffer = &gfx.Buffer{Address: 0x300}
	rec = &recorder{}
	require.NoError(t, p.Draw(rec, core1_0.CommandBuffer{}, mainCamera(), testSunDir, meshes, skinned, true))
	require.NoError(t, binary.Read(bytes.NewReader(rec.pushes[0]), common.ByteOrder, &decoded))
	assert.Equal(t, uint64(0x300), decoded.VertexBuffer)
}

func TestDrawShadowsDisabled(t *testing.T) {
	p := newTestPipeline()
	rec := &recorder{}
	meshes, drawCommands := testScene()

	require.NoError(t, p.Draw(rec, core1_0.CommandBuffer{}, mainCamera(), testSunDir, meshes, drawCommands, false))

	var expected []string
	for i := 0; i < NumCascades; i++ {
		expected = append(expected, "begin", "pipeline", "viewport", "end")
	}
	expected = append(expected, "image-barrier")
	assert.Equal(t, expected, rec.ops)
	assert.NotEqual(t, mgl32.Mat4{}, p.LightSpaceTMs()[0], "light matrices are still computed")
}

func TestDrawUnknownMesh(t *testing.T) {
	p := newTestPipeline()
	rec := &recorder{}
	meshes, _ := testScene()

	drawCommands := []mesh.DrawCommand{{
		MeshID:      7,
		Transform:   mgl32.Ident4(),
		WorldBounds: camera.Sphere{Center: mgl32.Vec3{0, 0, -5}, Radius: 1},
		CastShadow:  true,
	}}

	err := p.Draw(rec, core1_0.CommandBuffer{}, mainCamera(), testSunDir, meshes, drawCommands, true)
	require.Error(t, err)
	assert.True(t, errors.HasAssertionFailure(err))
	assert.Equal(t, "end", rec.ops[len(rec.ops)-1], "render pass is closed")
}

func TestInitRejectsBadPercents(t *testing.T) {
	var p Pipeline
	err := p.Init(nil, [NumCascades]float32{0.5, 0.3, 0.8, 1}, Options{MapSize: 1024})
	require.Error(t, err)
	assert.True(t, errors.HasAssertionFailure(err))

	err = p.Init(nil, defaultPercents, Options{MapSize: 1000})
	assert.Error(t, err)
}

func TestPushConstantsSize(t *testing.T) {
	data, err := gfx.EncodeData(pushConstants{})
	require.NoError(t, err)
	assert.Len(t, data, pushConstantsSize)
}
