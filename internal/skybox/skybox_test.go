package skybox

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/edbr/internal/camera"
	"github.com/vkngwrapper/edbr/internal/gfx"
)

type recorder struct {
	gfx.Recorder
	ops    []string
	pushes [][]byte
	draws  []int
}

func (r *recorder) BindPipeline(cmd core1_0.CommandBuffer, pipeline *gfx.Pipeline) {
	r.ops = append(r.ops, "pipeline")
}

func (r *recorder) BindBindlessSet(cmd core1_0.CommandBuffer, pipeline *gfx.Pipeline) {
	r.ops = append(r.ops, "bindless")
}

func (r *recorder) PushConstants(cmd core1_0.CommandBuffer, pipeline *gfx.Pipeline, data []byte) {
	r.ops = append(r.ops, "push")
	r.pushes = append(r.pushes, data)
}

func (r *recorder) Draw(cmd core1_0.CommandBuffer, vertexCount int) {
	r.ops = append(r.ops, "draw")
	r.draws = append(r.draws, vertexCount)
}

func testCamera() *camera.Camera {
	var cam camera.Camera
	cam.SetPosition(mgl32.Vec3{1, 2, 3})
	cam.Init(mgl32.DegToRad(70), 0.1, 500, 4.0/3.0)
	return &cam
}

func TestDrawWithoutImageIsNoop(t *testing.T) {
	p := &Pipeline{pipeline: &gfx.Pipeline{}, skyboxTextureID: gfx.NullImageID}
	rec := &recorder{}

	require.NoError(t, p.Draw(rec, core1_0.CommandBuffer{}, testCamera()))
	assert.Empty(t, rec.ops)
}

func TestDraw(t *testing.T) {
	p := &Pipeline{pipeline: &gfx.Pipeline{}}
	p.SetSkyboxImage(42)
	rec := &recorder{}
	cam := testCamera()

	require.NoError(t, p.Draw(rec, core1_0.CommandBuffer{}, cam))
	assert.Equal(t, []string{"pipeline", "bindless", "push", "draw"}, rec.ops)
	assert.Equal(t, []int{3}, rec.draws)

	require.Len(t, rec.pushes[0], pushConstantsSize)
	var decoded pushConstants
	require.NoError(t, binary.Read(bytes.NewReader(rec.pushes[0]), common.ByteOrder, &decoded))
	assert.Equal(t, uint32(42), decoded.SkyboxTextureID)
	assert.Equal(t, mgl32.Vec4{1, 2, 3, 1}, decoded.CameraPos)
	assert.True(t, decoded.InvViewProj.Mul4(cam.ViewProj()).ApproxEqualThreshold(mgl32.Ident4(), 1e-3))

	p.SetSkyboxImage(gfx.NullImageID)
	rec = &recorder{}
	require.NoError(t, p.Draw(rec, core1_0.CommandBuffer{}, cam))
	assert.Empty(t, rec.ops)
}
