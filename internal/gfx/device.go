package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/edbr/internal/config"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_buffer_device_address"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"golang.org/x/exp/slog"
)

// Device is the renderer's handle on the GPU.
type Device struct {
	cfg    config.Config
	logger *slog.Logger
	window *sdl.Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	driver         core1_0.CoreDeviceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface

	addressExtension khr_buffer_device_address.ExtensionDriver

	physicalDevice core1_0.PhysicalDevice
	graphicsFamily int
	presentFamily  int
	graphicsQueue  core1_0.Queue
	presentQueue   core1_0.Queue

	caps      Capabilities
	allocator *Allocator

	swapchain           swapchain
	swapchainImageIndex int
	frames              []frameData
	frameNumber         uint64
	immediate           immediateExecutor
	retired             RetirementQueue

	bindless       *bindlessSet
	imageCache     *ImageCache
	linearSampler  core1_0.Sampler
	nearestSampler core1_0.Sampler
}

// New creates a device presenting to window. On error everything created
// so far has already been released.
func New(window *sdl.Window, cfg config.Config, logger *slog.Logger) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Device{
		cfg:    cfg,
		logger: logger,
		window: window,
	}

	if err := d.init(); err != nil {
		d.Cleanup()
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	var err error
	d.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return errors.Wrap(err, "loading vulkan")
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"instance", d.createInstance},
		{"debug messenger", d.setupDebugMessenger},
		{"surface", d.createSurface},
		{"physical device", d.pickPhysicalDevice},
		{"logical device", d.createLogicalDevice},
		{"capabilities", d.queryCapabilities},
		{"allocator", d.createAllocator},
		{"swapchain", d.createSwapchain},
		{"frames", d.createFrames},
		{"immediate executor", d.createImmediateExecutor},
		{"samplers", d.createSamplers},
		{"bindless set", d.createBindless},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return errors.Wrapf(err, "initializing %s", step.name)
		}
	}

	d.logger.Info("device ready",
		slog.String("device", d.caps.DeviceName),
		slog.Int("framesInFlight", d.FrameOverlap()),
	)
	return nil
}

func (d *Device) createAllocator() error {
	memoryProperties := d.instanceDriver.GetPhysicalDeviceMemoryProperties(d.physicalDevice)

	d.allocator = &Allocator{
		driver:      d.driver,
		memoryTypes: memoryProperties.MemoryTypes,
		logger:      d.logger,
	}
	if d.addressExtension != nil {
		d.allocator.addressAllocateInfo = addressAllocateInfo
	}
	return nil
}

func (d *Device) createSamplers() error {
	var err error
	d.linearSampler, _, err = d.driver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    d.caps.MaxAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MaxLod:     1000,
	})
	if err != nil {
		return errors.Wrap(err, "creating linear sampler")
	}

	// Depth images are sampled without filtering.
	d.nearestSampler, _, err = d.driver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterNearest,
		MinFilter:    core1_0.FilterNearest,
		AddressModeU: core1_0.SamplerAddressModeClampToEdge,
		AddressModeV: core1_0.SamplerAddressModeClampToEdge,
		AddressModeW: core1_0.SamplerAddressModeClampToEdge,

		BorderColor: core1_0.BorderColorFloatOpaqueWhite,

		MipmapMode: core1_0.SamplerMipmapModeNearest,
	})
	return errors.Wrap(err, "creating nearest sampler")
}

// createBindless creates the bindless set and the white image every slot
// starts out pointing at.
func (d *Device) createBindless() error {
	var err error
	d.bindless, err = newBindlessSet(d.driver, d.FrameOverlap(), d.caps.MaxBindlessImages)
	if err != nil {
		return err
	}
	d.imageCache = newImageCache(d, d.caps.MaxBindlessImages, d.logger)

	id, err := d.CreateImage(ImageCreateInfo{
		Format: core1_0.FormatR8G8B8A8UnsignedNormalized,
		Usage:  core1_0.ImageUsageSampled,
		Extent: core1_0.Extent3D{Width: 1, Height: 1, Depth: 1},
	}, "white", []byte{255, 255, 255, 255}, NullImageID)
	if err != nil {
		return err
	}
	if id != WhiteImageID {
		return errors.AssertionFailedf("white image registered as %d", id)
	}

	// The white write queued by CreateImage is redundant once every slot
	// points at white, but harmless.
	return d.bindless.fill(d.imageCache.Get(WhiteImageID), d.linearSampler)
}

func (d *Device) Capabilities() Capabilities {
	return d.caps
}

// Cleanup waits for the GPU and releases every resource the device owns.
// Resources created by callers must be destroyed first.
func (d *Device) Cleanup() {
	if d.driver != nil {
		if err := d.WaitIdle(); err != nil {
			d.logger.Error("waiting for idle before cleanup", slog.Any("error", err))
		}

		d.retired.Flush()
		if d.imageCache != nil {
			d.imageCache.destroyAll()
			d.imageCache = nil
		}
		if d.bindless != nil {
			d.bindless.cleanup()
			d.bindless = nil
		}
		if d.linearSampler.Initialized() {
			d.driver.DestroySampler(d.linearSampler, nil)
		}
		if d.nearestSampler.Initialized() {
			d.driver.DestroySampler(d.nearestSampler, nil)
		}
		d.cleanupImmediateExecutor()
		d.cleanupFrames()
		d.cleanupSwapchain()

		d.driver.DestroyDevice(nil)
		d.driver = nil
	}

	if d.instanceDriver != nil {
		if d.debugMessenger.Initialized() {
			d.debugDriver.DestroyDebugUtilsMessenger(d.debugMessenger, nil)
		}
		if d.surface.Initialized() {
			d.surfaceExtension.DestroySurface(d.surface, nil)
		}
		d.instanceDriver.DestroyInstance(nil)
		d.instanceDriver = nil
	}
}
