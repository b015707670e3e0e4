// Package camera implements the perspective and orthographic cameras used by
// the renderer. Projections are reverse-Z (near maps to depth 1, far to 0)
// with Vulkan's downward clip-space Y.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	localFront = mgl32.Vec3{0, 0, -1}
	localUp    = mgl32.Vec3{0, 1, 0}
	localRight = mgl32.Vec3{1, 0, 0}
)

type Camera struct {
	position mgl32.Vec3
	heading  mgl32.Quat

	orthographic bool

	// perspective
	fovX   float32
	aspect float32

	// orthographic
	xMin, xMax float32
	yMin, yMax float32

	zNear float32
	zFar  float32
}

// Init sets up a perspective projection. fovX is the horizontal field of view
// in radians.
func (c *Camera) Init(fovX, zNear, zFar, aspect float32) {
	c.orthographic = false
	c.fovX = fovX
	c.zNear = zNear
	c.zFar = zFar
	c.aspect = aspect
	if c.heading == (mgl32.Quat{}) {
		c.heading = mgl32.QuatIdent()
	}
}

// InitOrtho sets up an orthographic projection over the given view space box.
func (c *Camera) InitOrtho(xMin, xMax, yMin, yMax, zNear, zFar float32) {
	c.orthographic = true
	c.xMin, c.xMax = xMin, xMax
	c.yMin, c.yMax = yMin, yMax
	c.zNear = zNear
	c.zFar = zFar
	if c.heading == (mgl32.Quat{}) {
		c.heading = mgl32.QuatIdent()
	}
}

func (c *Camera) Position() mgl32.Vec3 { return c.position }

func (c *Camera) SetPosition(p mgl32.Vec3) { c.position = p }

func (c *Camera) Heading() mgl32.Quat { return c.heading }

func (c *Camera) SetHeading(q mgl32.Quat) { c.heading = q.Normalize() }

func (c *Camera) Orthographic() bool { return c.orthographic }
func (c *Camera) FovX() float32      { return c.fovX }
func (c *Camera) Aspect() float32    { return c.aspect }
func (c *Camera) ZNear() float32     { return c.zNear }
func (c *Camera) ZFar() float32      { return c.zFar }

// FovY derives the vertical field of view from fovX and the aspect ratio.
func (c *Camera) FovY() float32 {
	return 2 * float32(math.Atan(math.Tan(float64(c.fovX)/2)/float64(c.aspect)))
}

func (c *Camera) Front() mgl32.Vec3 { return c.heading.Rotate(localFront) }
func (c *Camera) Up() mgl32.Vec3    { return c.heading.Rotate(localUp) }
func (c *Camera) Right() mgl32.Vec3 { return c.heading.Rotate(localRight) }

// LookAt points the camera at target. If dir is parallel to up another up
// axis is picked.
func (c *Camera) LookAt(target, up mgl32.Vec3) {
	c.SetDirection(target.Sub(c.position), up)
}

// SetDirection orients the camera so that Front() == normalized dir.
func (c *Camera) SetDirection(dir, up mgl32.Vec3) {
	front := dir.Normalize()
	if math.Abs(float64(front.Dot(up.Normalize()))) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
		if math.Abs(float64(front.Z())) > 0.999 {
			up = mgl32.Vec3{1, 0, 0}
		}
	}
	right := front.Cross(up).Normalize()
	trueUp := right.Cross(front)

	basis := mgl32.Mat4FromCols(
		right.Vec4(0),
		trueUp.Vec4(0),
		front.Mul(-1).Vec4(0),
		mgl32.Vec4{0, 0, 0, 1},
	)
	c.heading = mgl32.Mat4ToQuat(basis).Normalize()
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.position, c.position.Add(c.Front()), c.Up())
}

func (c *Camera) Projection() mgl32.Mat4 {
	if c.orthographic {
		return orthoReverseZ(c.xMin, c.xMax, c.yMin, c.yMax, c.zNear, c.zFar)
	}
	return perspectiveReverseZ(c.FovY(), c.aspect, c.zNear, c.zFar)
}

func (c *Camera) ViewProj() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// FrustumCorners returns the world space corners of the view volume: the
// four near plane corners first, then the four far plane corners.
func (c *Camera) FrustumCorners() [8]mgl32.Vec3 {
	inv := c.ViewProj().Inv()

	var corners [8]mgl32.Vec3
	i := 0
	// reverse-Z: ndc depth 1 is the near plane
	for _, z := range [2]float32{1, 0} {
		for _, y := range [2]float32{-1, 1} {
			for _, x := range [2]float32{-1, 1} {
				p := inv.Mul4x1(mgl32.Vec4{x, y, z, 1})
				corners[i] = p.Vec3().Mul(1 / p.W())
				i++
			}
		}
	}
	return corners
}

// Frustum returns the culling planes of the camera.
func (c *Camera) Frustum() Frustum {
	return FrustumFromMatrix(c.ViewProj())
}

func perspectiveReverseZ(fovY, aspect, zNear, zFar float32) mgl32.Mat4 {
	f := 1 / float32(math.Tan(float64(fovY)/2))

	var m mgl32.Mat4
	m[0] = f / aspect
	m[5] = -f
	m[10] = zNear / (zFar - zNear)
	m[11] = -1
	m[14] = zNear * zFar / (zFar - zNear)
	return m
}

func orthoReverseZ(left, right, bottom, top, zNear, zFar float32) mgl32.Mat4 {
	var m mgl32.Mat4
	m[0] = 2 / (right - left)
	m[5] = -2 / (top - bottom)
	m[10] = 1 / (zFar - zNear)
	m[12] = -(right + left) / (right - left)
	m[13] = (top + bottom) / (top - bottom)
	m[14] = zFar / (zFar - zNear)
	m[15] = 1
	return m
}
