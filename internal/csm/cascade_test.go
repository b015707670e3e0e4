package csm

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/edbr/internal/camera"
)

var defaultPercents = [NumCascades]float32{0.13, 0.33, 0.66, 1.0}

func TestComputeCascadeSplits(t *testing.T) {
	splits := ComputeCascadeSplits(0.1, 100, defaultPercents)

	expected := [NumCascades]Split{
		{Near: 0.1, Far: 13},
		{Near: 0.013, Far: 33},
		{Near: 0.033, Far: 66},
		{Near: 0.066, Far: 100},
	}
	for i := range splits {
		assert.InDelta(t, expected[i].Near, splits[i].Near, 1e-5, "cascade %d near", i)
		assert.InDelta(t, expected[i].Far, splits[i].Far, 1e-4, "cascade %d far", i)
	}
}

func TestComputeCascadeSplitsTenths(t *testing.T) {
	splits := ComputeCascadeSplits(0.1, 100, [NumCascades]float32{0.1, 0.3, 0.6, 1.0})

	// Near planes scale zNear, not zFar: 0.1*0.1, 0.1*0.3, 0.1*0.6.
	expected := [NumCascades]Split{
		{Near: 0.1, Far: 10},
		{Near: 0.01, Far: 30},
		{Near: 0.03, Far: 60},
		{Near: 0.06, Far: 100},
	}
	for i := range splits {
		assert.InDelta(t, expected[i].Near, splits[i].Near, 1e-6, "cascade %d near", i)
		assert.InDelta(t, expected[i].Far, splits[i].Far, 1e-4, "cascade %d far", i)
	}
}

func TestCascadesLeaveNoGaps(t *testing.T) {
	splits := ComputeCascadeSplits(0.5, 250, defaultPercents)

	assert.Equal(t, float32(0.5), splits[0].Near)
	assert.Equal(t, float32(250), splits[NumCascades-1].Far)
	for i := 1; i < NumCascades; i++ {
		assert.LessOrEqual(t, splits[i].Near, splits[i-1].Far, "cascade %d starts after %d ends", i, i-1)
		assert.Greater(t, splits[i].Far, splits[i-1].Far)
	}
}

func testCamera(position mgl32.Vec3) *camera.Camera {
	var cam camera.Camera
	cam.SetPosition(position)
	cam.SetDirection(mgl32.Vec3{0.3, -0.2, -1}, mgl32.Vec3{0, 1, 0})
	cam.Init(mgl32.DegToRad(90), 0.1, 100, 16.0/9.0)
	return &cam
}

var testSunDir = mgl32.Vec3{-0.4, -1, -0.3}.Normalize()

func TestFitLightCameraCoversCorners(t *testing.T) {
	cam := testCamera(mgl32.Vec3{2, 3, 4})

	for _, split := range ComputeCascadeSplits(cam.ZNear(), cam.ZFar(), defaultPercents) {
		sub := subFrustum(cam, split)
		corners := sub.FrustumCorners()
		light := FitLightCamera(corners, testSunDir, 2048)

		require.True(t, light.Orthographic())
		assert.InDelta(t, 1, light.Front().Dot(testSunDir), 1e-4)

		// Snapping may shift the sphere by up to a texel.
		const slack = 3.0 / 2048
		vp := light.ViewProj()
		for _, corner := range corners {
			clip := vp.Mul4x1(corner.Vec4(1))
			ndc := clip.Vec3().Mul(1 / clip.W())
			assert.LessOrEqual(t, math.Abs(float64(ndc.X())), 1.0+slack)
			assert.LessOrEqual(t, math.Abs(float64(ndc.Y())), 1.0+slack)
			assert.GreaterOrEqual(t, ndc.Z(), float32(-1e-4))
			assert.LessOrEqual(t, ndc.Z(), float32(1+1e-4))
		}
	}
}

// texelOf returns where p lands in shadow map texels.
func texelOf(vp mgl32.Mat4, p mgl32.Vec3, size int) (float64, float64) {
	clip := vp.Mul4x1(p.Vec4(1))
	x := (float64(clip.X()/clip.W())*0.5 + 0.5) * float64(size)
	y := (float64(clip.Y()/clip.W())*0.5 + 0.5) * float64(size)
	return x, y
}

func TestFitLightCameraSnapsToTexels(t *testing.T) {
	const size = 1024

	positions := []mgl32.Vec3{
		{0, 0, 0},
		{3.37, 0.5, -2.11},
		{-12.9, 1.25, 7.04},
	}

	var projections []mgl32.Mat4
	for _, pos := range positions {
		cam := testCamera(pos)
		sub := subFrustum(cam, Split{Near: cam.ZNear(), Far: 20})
		light := FitLightCamera(sub.FrustumCorners(), testSunDir, size)
		projections = append(projections, light.Projection())

		// A fixed world point always falls on the same sub-texel offset,
		// so moving the camera shifts the map by whole texels only.
		x, y := texelOf(light.ViewProj(), mgl32.Vec3{}, size)
		assert.InDelta(t, math.Round(x), x, 0.01, "camera at %v", pos)
		assert.InDelta(t, math.Round(y), y, 0.01, "camera at %v", pos)
	}

	// Translating the camera does not change the light's extent.
	for _, proj := range projections[1:] {
		assert.True(t, proj.ApproxEqualThreshold(projections[0], 1e-5))
	}
}
