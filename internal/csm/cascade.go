// Package csm renders cascaded shadow maps: the view frustum is split along
// its depth and each slice gets its own orthographic light camera and shadow
// map layer.
package csm

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/edbr/internal/camera"
	"github.com/vkngwrapper/edbr/internal/config"
)

const NumCascades = config.NumCascades

// Split is the depth range of one cascade along the main camera's view.
type Split struct {
	Near float32
	Far  float32
}

// ComputeCascadeSplits slices [zNear, zFar] by percents. Cascade i ends at
// percents[i]*zFar and starts at zNear*percents[i-1], so neighbouring
// cascades overlap.
func ComputeCascadeSplits(zNear, zFar float32, percents [NumCascades]float32) [NumCascades]Split {
	var splits [NumCascades]Split
	for i := range splits {
		if i == 0 {
			splits[i].Near = zNear
		} else {
			splits[i].Near = zNear * percents[i-1]
		}
		splits[i].Far = zFar * percents[i]
	}
	return splits
}

// subFrustum is main limited to split, with the same position, heading and
// field of view.
func subFrustum(main *camera.Camera, split Split) camera.Camera {
	var sub camera.Camera
	sub.SetPosition(main.Position())
	sub.SetHeading(main.Heading())
	sub.Init(main.FovX(), split.Near, split.Far, main.Aspect())
	return sub
}

// FitLightCamera returns an orthographic camera looking along sunDir that
// covers the bounding sphere of corners. The sphere center is snapped to
// the shadow map texel grid in light space so static geometry does not
// shimmer as the main camera moves.
func FitLightCamera(corners [8]mgl32.Vec3, sunDir mgl32.Vec3, shadowMapSize int) camera.Camera {
	sphere := camera.BoundingSphere(corners[:])

	// Quantized so the texel size does not change with float noise.
	radius := float32(math.Ceil(float64(sphere.Radius)*16) / 16)
	if radius == 0 {
		radius = 1.0 / 16
	}
	texelSize := 2 * radius / float32(shadowMapSize)

	var light camera.Camera
	light.SetDirection(sunDir, mgl32.Vec3{0, 1, 0})

	rotation := light.Heading().Inverse()
	center := rotation.Rotate(sphere.Center)
	center[0] = float32(math.Floor(float64(center[0]/texelSize))) * texelSize
	center[1] = float32(math.Floor(float64(center[1]/texelSize))) * texelSize
	center = light.Heading().Rotate(center)

	light.SetPosition(center.Sub(light.Front().Mul(radius)))
	light.InitOrtho(-radius, radius, -radius, radius, 0, 2*radius)
	return light
}
