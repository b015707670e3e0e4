// Package gfx owns the Vulkan device and everything whose lifetime is tied to
// it: frames in flight, the swapchain, memory, buffers, images, the bindless
// image set and multi-buffered uploads.
//
// A single goroutine drives a Device. Resources that the GPU may still read
// are released through the retirement queue once enough frames have passed.
package gfx

import (
	"math"

	"github.com/cockroachdb/errors"
)

// ImageID indexes the bindless image array.
type ImageID uint32

const (
	// NullImageID means "no image".
	NullImageID ImageID = math.MaxUint32
	// WhiteImageID is the 1x1 opaque white texture created with the device.
	WhiteImageID ImageID = 0
)

var (
	// ErrSwapchainOutOfDate is returned by BeginFrame and EndFrame when the
	// swapchain no longer matches the surface. Call RecreateSwapchain.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	// ErrInvalidImageInfo is returned for image descriptors the device
	// cannot create.
	ErrInvalidImageInfo = errors.New("invalid image create info")
	// ErrCubemapFaceMismatch is returned when cubemap faces differ in size.
	ErrCubemapFaceMismatch = errors.New("cubemap faces differ in size")
	// ErrUnknownImage is returned for IDs that do not name a live image.
	ErrUnknownImage = errors.New("unknown image id")
)
