package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

const eps = 1e-4

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want[i], got[i], eps, "component %d of %v vs %v", i, want, got)
	}
}

func project(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	v := m.Mul4x1(p.Vec4(1))
	return v.Vec3().Mul(1 / v.W())
}

func TestPerspectiveIsReverseZ(t *testing.T) {
	var c Camera
	c.Init(mgl32.DegToRad(90), 0.1, 100, 1)

	near := project(c.ViewProj(), mgl32.Vec3{0, 0, -0.1})
	far := project(c.ViewProj(), mgl32.Vec3{0, 0, -100})
	assert.InDelta(t, 1, near.Z(), eps)
	assert.InDelta(t, 0, far.Z(), eps)

	// clip space Y points down
	up := project(c.ViewProj(), mgl32.Vec3{0, 1, -2})
	assert.Less(t, up.Y(), float32(0))
}

func TestOrthoIsReverseZ(t *testing.T) {
	var c Camera
	c.InitOrtho(-10, 10, -5, 5, 1, 50)

	p := project(c.Projection(), mgl32.Vec3{10, 5, -1})
	assertVec3(t, mgl32.Vec3{1, -1, 1}, p)

	p = project(c.Projection(), mgl32.Vec3{-10, -5, -50})
	assertVec3(t, mgl32.Vec3{-1, 1, 0}, p)
}

func TestFovY(t *testing.T) {
	var c Camera
	c.Init(mgl32.DegToRad(90), 0.1, 100, 2)
	want := 2 * math.Atan(0.5)
	assert.InDelta(t, want, c.FovY(), eps)
}

func TestFrustumCorners(t *testing.T) {
	var c Camera
	c.Init(mgl32.DegToRad(90), 1, 10, 1)
	c.SetPosition(mgl32.Vec3{0, 0, 5})

	corners := c.FrustumCorners()
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 4, corners[i].Z(), eps, "near corner %d", i)
		assert.InDelta(t, 1, math.Abs(float64(corners[i].X())), eps)
		assert.InDelta(t, 1, math.Abs(float64(corners[i].Y())), eps)
	}
	for i := 4; i < 8; i++ {
		assert.InDelta(t, -5, corners[i].Z(), 1e-3, "far corner %d", i)
		assert.InDelta(t, 10, math.Abs(float64(corners[i].X())), 1e-3)
		assert.InDelta(t, 10, math.Abs(float64(corners[i].Y())), 1e-3)
	}
}

func TestSetDirection(t *testing.T) {
	var c Camera
	c.Init(1, 0.1, 10, 1)

	dirs := []mgl32.Vec3{
		{1, 0, 0},
		{0, 0, 1},
		{1, -1, 0.5},
		{0, -1, 0}, // parallel to up
	}
	for _, d := range dirs {
		c.SetDirection(d, mgl32.Vec3{0, 1, 0})
		assertVec3(t, d.Normalize(), c.Front())
		assert.InDelta(t, 0, c.Front().Dot(c.Up()), eps)
		assert.InDelta(t, 0, c.Front().Dot(c.Right()), eps)
	}
}

func TestLookAt(t *testing.T) {
	var c Camera
	c.Init(1, 0.1, 10, 1)
	c.SetPosition(mgl32.Vec3{3, 3, 3})
	c.LookAt(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})

	// the target projects to the screen center
	p := project(c.ViewProj(), mgl32.Vec3{})
	assert.InDelta(t, 0, p.X(), eps)
	assert.InDelta(t, 0, p.Y(), eps)
}

func TestFrontDistanceIsViewDepth(t *testing.T) {
	var c Camera
	c.SetPosition(mgl32.Vec3{3, 1, -2})
	c.SetDirection(mgl32.Vec3{1, -0.3, -0.5}, mgl32.Vec3{0, 1, 0})
	c.Init(mgl32.DegToRad(100), 0.5, 20, 16.0/9.0)

	// The far corners sit off axis, where Euclidean distance exceeds depth.
	corners := c.FrustumCorners()
	for _, p := range corners[4:] {
		viewZ := c.View().Mul4x1(p.Vec4(1)).Z()
		depth := p.Sub(c.Position()).Dot(c.Front())

		assert.InDelta(t, -viewZ, depth, 1e-3)
		assert.InDelta(t, c.ZFar(), depth, 0.2)
		assert.Greater(t, p.Sub(c.Position()).Len(), c.ZFar())
	}
}
