package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"golang.org/x/exp/slog"
)

type swapchainSupportDetails struct {
	capabilities *khr_surface.SurfaceCapabilities
	formats      []khr_surface.SurfaceFormat
	presentModes []khr_surface.PresentMode
}

func (d *Device) querySwapchainSupport(device core1_0.PhysicalDevice) (swapchainSupportDetails, error) {
	var details swapchainSupportDetails
	var err error

	details.capabilities, _, err = d.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(d.surface, device)
	if err != nil {
		return details, errors.Wrap(err, "querying surface capabilities")
	}

	details.formats, _, err = d.surfaceExtension.GetPhysicalDeviceSurfaceFormats(d.surface, device)
	if err != nil {
		return details, errors.Wrap(err, "querying surface formats")
	}

	details.presentModes, _, err = d.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(d.surface, device)
	return details, errors.Wrap(err, "querying present modes")
}

func chooseSwapSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

// chooseSwapPresentMode prefers mailbox when vsync is off. FIFO is always
// available.
func chooseSwapPresentMode(availablePresentModes []khr_surface.PresentMode, vsync bool) khr_surface.PresentMode {
	if vsync {
		return khr_surface.PresentModeFIFO
	}
	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

// chooseSwapExtent uses the surface's extent unless the surface lets the
// swapchain decide, in which case the drawable size is clamped to the limits.
func chooseSwapExtent(capabilities *khr_surface.SurfaceCapabilities, width, height int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width = min(max(width, capabilities.MinImageExtent.Width), capabilities.MaxImageExtent.Width)
	height = min(max(height, capabilities.MinImageExtent.Height), capabilities.MaxImageExtent.Height)
	return core1_0.Extent2D{Width: width, Height: height}
}

func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

type swapchain struct {
	extension khr_swapchain.ExtensionDriver
	handle    khr_swapchain.Swapchain
	// images wrap the swapchain's images so they can be used with
	// ImageBarrier. They own no memory and have no view.
	images []*Image
	format core1_0.Format
	extent core1_0.Extent2D
}

func (d *Device) createSwapchain() error {
	if d.swapchain.extension == nil {
		d.swapchain.extension = khr_swapchain.CreateExtensionDriverFromCoreDriver(d.driver)
	}

	support, err := d.querySwapchainSupport(d.physicalDevice)
	if err != nil {
		return err
	}

	w, h := d.window.VulkanGetDrawableSize()
	surfaceFormat := chooseSwapSurfaceFormat(support.formats)
	presentMode := chooseSwapPresentMode(support.presentModes, d.cfg.VSync)
	extent := chooseSwapExtent(support.capabilities, int(w), int(h))

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if d.graphicsFamily != d.presentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, d.graphicsFamily, d.presentFamily)
	}

	handle, _, err := d.swapchain.extension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: d.surface,

		MinImageCount:    chooseImageCount(support.capabilities),
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment | core1_0.ImageUsageTransferDst,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   support.capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return errors.Wrap(err, "creating swapchain")
	}

	images, _, err := d.swapchain.extension.GetSwapchainImages(handle)
	if err != nil {
		d.swapchain.extension.DestroySwapchain(handle, nil)
		return errors.Wrap(err, "getting swapchain images")
	}

	d.swapchain.handle = handle
	d.swapchain.format = surfaceFormat.Format
	d.swapchain.extent = extent
	d.swapchain.images = d.swapchain.images[:0]
	for _, image := range images {
		d.swapchain.images = append(d.swapchain.images, &Image{
			Handle:    image,
			Format:    surfaceFormat.Format,
			Extent:    core1_0.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
			Layers:    1,
			MipLevels: 1,
			Samples:   core1_0.Samples1,
			Name:      "swapchain",
		})
	}

	d.logger.Info("swapchain created",
		slog.Int("width", extent.Width),
		slog.Int("height", extent.Height),
		slog.Int("images", len(images)),
		slog.String("format", surfaceFormat.Format.String()),
		slog.Any("presentMode", presentMode),
	)
	return nil
}

func (d *Device) cleanupSwapchain() {
	if d.swapchain.handle.Initialized() {
		d.swapchain.extension.DestroySwapchain(d.swapchain.handle, nil)
		d.swapchain.handle = khr_swapchain.Swapchain{}
	}
	d.swapchain.images = nil
}

// RecreateSwapchain rebuilds the swapchain for the window's current size.
// It does nothing while the window is minimized.
func (d *Device) RecreateSwapchain() error {
	w, h := d.window.VulkanGetDrawableSize()
	if w == 0 || h == 0 {
		return nil
	}

	if err := d.WaitIdle(); err != nil {
		return err
	}

	d.cleanupSwapchain()
	return d.createSwapchain()
}

// acquireImage returns the index of the next swapchain image. signal is
// signalled once the image can be written.
func (d *Device) acquireImage(signal core1_0.Semaphore) (int, error) {
	imageIndex, res, err := d.swapchain.extension.AcquireNextImage(d.swapchain.handle, common.NoTimeout, &signal, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return 0, errors.Mark(errors.Newf("acquire returned %s", res), ErrSwapchainOutOfDate)
	} else if err != nil {
		return 0, errors.Wrap(err, "acquiring swapchain image")
	}
	return imageIndex, nil
}

func (d *Device) present(wait core1_0.Semaphore, imageIndex int) error {
	res, err := d.swapchain.extension.QueuePresent(d.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{wait},
		Swapchains:     []khr_swapchain.Swapchain{d.swapchain.handle},
		ImageIndices:   []int{imageIndex},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		return errors.Mark(errors.Newf("present returned %s", res), ErrSwapchainOutOfDate)
	} else if err != nil {
		return errors.Wrap(err, "presenting")
	}
	return nil
}

func (d *Device) SwapchainExtent() core1_0.Extent2D {
	return d.swapchain.extent
}
