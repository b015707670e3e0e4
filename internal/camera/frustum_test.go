package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestSphereInside(t *testing.T) {
	var c Camera
	c.Init(mgl32.DegToRad(90), 1, 100, 1)
	f := c.Frustum()

	cases := []struct {
		name   string
		center mgl32.Vec3
		radius float32
		inside bool
	}{
		{"center", mgl32.Vec3{0, 0, -10}, 1, true},
		{"behind camera", mgl32.Vec3{0, 0, 10}, 1, false},
		{"behind touching near", mgl32.Vec3{0, 0, 0}, 1.5, true},
		{"past far", mgl32.Vec3{0, 0, -120}, 5, false},
		{"straddles far", mgl32.Vec3{0, 0, -102}, 5, true},
		{"far left", mgl32.Vec3{-50, 0, -10}, 1, false},
		{"far right", mgl32.Vec3{50, 0, -10}, 1, false},
		{"above", mgl32.Vec3{0, 50, -10}, 1, false},
		{"big sphere reaching in", mgl32.Vec3{-50, 0, -10}, 40, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.inside, f.SphereInside(tc.center, tc.radius))
		})
	}
}

func TestFrustumPlanesNormalized(t *testing.T) {
	var c Camera
	c.InitOrtho(-4, 4, -4, 4, 0.5, 30)
	c.SetPosition(mgl32.Vec3{1, 2, 3})
	c.SetDirection(mgl32.Vec3{1, -1, 0}, mgl32.Vec3{0, 1, 0})

	f := c.Frustum()
	for i, p := range f.Planes {
		assert.InDelta(t, 1, p.Normal.Len(), eps, "plane %d", i)
	}
	// ortho near plane distance from the eye equals zNear
	assert.InDelta(t, -0.5, f.Planes[FrustumNear].SignedDistance(c.Position()), eps)
}

func TestBoundingSphere(t *testing.T) {
	s := BoundingSphere([]mgl32.Vec3{{-1, 0, 0}, {1, 0, 0}, {0, 2, 0}, {0, -2, 0}})
	assertVec3(t, mgl32.Vec3{}, s.Center)
	assert.InDelta(t, 2, s.Radius, eps)

	assert.Equal(t, Sphere{}, BoundingSphere(nil))
}

func TestSphereTransform(t *testing.T) {
	s := Sphere{Center: mgl32.Vec3{1, 0, 0}, Radius: 1}
	m := mgl32.Translate3D(0, 5, 0).Mul4(mgl32.Scale3D(1, 3, 2))

	ws := s.Transform(m)
	assertVec3(t, mgl32.Vec3{1, 5, 0}, ws.Center)
	assert.InDelta(t, 3, ws.Radius, eps)
}
