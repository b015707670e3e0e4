package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane is n·p + d = 0 with n pointing into the frustum.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

func (p Plane) SignedDistance(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.Distance
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

type Frustum struct {
	Planes [6]Plane
}

// FrustumFromMatrix extracts normalized planes from a view-projection matrix
// (Gribb/Hartmann). Clip depth is [0, w] with near at w, as produced by the
// reverse-Z projections in this package.
func FrustumFromMatrix(vp mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := vp.Row(0), vp.Row(1), vp.Row(2), vp.Row(3)

	var f Frustum
	f.Planes[FrustumLeft] = makePlane(r3.Add(r0))
	f.Planes[FrustumRight] = makePlane(r3.Sub(r0))
	f.Planes[FrustumBottom] = makePlane(r3.Add(r1))
	f.Planes[FrustumTop] = makePlane(r3.Sub(r1))
	f.Planes[FrustumNear] = makePlane(r3.Sub(r2))
	f.Planes[FrustumFar] = makePlane(r2)
	return f
}

func makePlane(v mgl32.Vec4) Plane {
	p := Plane{Normal: v.Vec3(), Distance: v.W()}
	if l := p.Normal.Len(); l > 0 {
		p.Normal = p.Normal.Mul(1 / l)
		p.Distance /= l
	}
	return p
}

// SphereInside reports whether a sphere touches the frustum. It is
// conservative near the frustum edges.
func (f *Frustum) SphereInside(center mgl32.Vec3, radius float32) bool {
	for _, p := range f.Planes {
		if p.SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}

// Sphere is a bounding sphere in world space.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// BoundingSphere returns a sphere centered on the average of the points
// containing all of them.
func BoundingSphere(points []mgl32.Vec3) Sphere {
	if len(points) == 0 {
		return Sphere{}
	}

	var center mgl32.Vec3
	for _, p := range points {
		center = center.Add(p)
	}
	center = center.Mul(1 / float32(len(points)))

	var radius float32
	for _, p := range points {
		if d := p.Sub(center).Len(); d > radius {
			radius = d
		}
	}
	return Sphere{Center: center, Radius: radius}
}

// Transform moves the sphere by m, scaling the radius by the largest axis
// scale.
func (s Sphere) Transform(m mgl32.Mat4) Sphere {
	c := m.Mul4x1(s.Center.Vec4(1)).Vec3()
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	scale := sx
	if sy > scale {
		scale = sy
	}
	if sz > scale {
		scale = sz
	}
	return Sphere{Center: c, Radius: s.Radius * scale}
}
