package gfx

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/ext_descriptor_indexing"
	"github.com/vkngwrapper/extensions/v3/khr_buffer_device_address"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
	"golang.org/x/exp/slog"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

type queueFamilyIndices struct {
	graphicsFamily *int
	presentFamily  *int
}

func (i *queueFamilyIndices) isComplete() bool {
	return i.graphicsFamily != nil && i.presentFamily != nil
}

func (d *Device) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    d.cfg.Title,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "edbr",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	sdlExtensions := d.window.VulkanGetInstanceExtensions()
	extensions, _, err := d.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "listing instance extensions")
	}

	for _, ext := range sdlExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Errorf("createInstance: cannot initialize sdl: missing extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if d.cfg.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if d.cfg.Validation {
		layers, _, err := d.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "listing instance layers")
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Errorf("createInstance: cannot add validation layer %s: not available, install the LunarG Vulkan SDK", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = d.debugMessengerOptions()
	}

	d.instanceDriver, _, err = d.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrap(err, "creating instance")
	}
	return nil
}

func (d *Device) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    d.logDebug,
	}
}

func (d *Device) setupDebugMessenger() error {
	if !d.cfg.Validation {
		return nil
	}

	var err error
	d.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(d.instanceDriver)
	d.debugMessenger, _, err = d.debugDriver.CreateDebugUtilsMessenger(nil, d.debugMessengerOptions())
	if err != nil {
		return errors.Wrap(err, "creating debug messenger")
	}
	return nil
}

func (d *Device) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	}
	d.logger.Log(context.Background(), level, data.Message,
		slog.String("type", msgType.String()),
		slog.String("severity", severity.String()),
	)
	return false
}

func (d *Device) createSurface() error {
	d.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(d.instanceDriver)
	surface, err := vkng_sdl2.CreateSurface(d.instanceDriver.Instance(), d.surfaceExtension, d.window)
	if err != nil {
		return errors.Wrap(err, "creating surface")
	}

	d.surface = surface
	return nil
}

func (d *Device) pickPhysicalDevice() error {
	physicalDevices, _, err := d.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "enumerating physical devices")
	}

	for _, device := range physicalDevices {
		if d.isDeviceSuitable(device) {
			d.physicalDevice = device
			break
		}
	}

	if !d.physicalDevice.Initialized() {
		return errors.Errorf("failed to find a suitable GPU")
	}
	return nil
}

func (d *Device) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	indices, err := d.findQueueFamilies(device)
	if err != nil {
		return false
	}

	extensionsSupported := d.checkDeviceExtensionSupport(device)

	var swapChainAdequate bool
	if extensionsSupported {
		support, err := d.querySwapchainSupport(device)
		if err != nil {
			return false
		}
		swapChainAdequate = len(support.formats) > 0 && len(support.presentModes) > 0
	}

	features := d.instanceDriver.GetPhysicalDeviceFeatures(device)
	if !indices.isComplete() || !extensionsSupported || !swapChainAdequate ||
		!features.SamplerAnisotropy || !features.DepthClamp || !features.ShaderInt64 {
		return false
	}

	indexing, err := d.queryDescriptorIndexing(device)
	if err != nil {
		d.logger.Debug("skipping device", slog.Any("error", err))
		return false
	}
	if missing := missingIndexingFeatures(indexing.features); len(missing) > 0 {
		d.logger.Debug("skipping device without descriptor indexing", slog.Any("missing", missing))
		return false
	}
	return true
}

func (d *Device) checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := d.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return false
	}

	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}
	return true
}

func (d *Device) findQueueFamilies(device core1_0.PhysicalDevice) (queueFamilyIndices, error) {
	indices := queueFamilyIndices{}
	queueFamilies := d.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			indices.graphicsFamily = new(int)
			*indices.graphicsFamily = queueFamilyIdx
		}

		supported, _, err := d.surfaceExtension.GetPhysicalDeviceSurfaceSupport(d.surface, device, queueFamilyIdx)
		if err != nil {
			return indices, errors.Wrap(err, "querying surface support")
		}

		if supported {
			indices.presentFamily = new(int)
			*indices.presentFamily = queueFamilyIdx
		}

		if indices.isComplete() {
			break
		}
	}

	return indices, nil
}

func (d *Device) createLogicalDevice() error {
	indices, err := d.findQueueFamilies(d.physicalDevice)
	if err != nil {
		return err
	}
	d.graphicsFamily = *indices.graphicsFamily
	d.presentFamily = *indices.presentFamily

	uniqueQueueFamilies := []int{d.graphicsFamily}
	if uniqueQueueFamilies[0] != d.presentFamily {
		uniqueQueueFamilies = append(uniqueQueueFamilies, d.presentFamily)
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range uniqueQueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Portability drivers (MoltenVK) require the subset extension.
	extensions, _, err := d.instanceDriver.EnumerateDeviceExtensionProperties(d.physicalDevice)
	if err != nil {
		return errors.Wrap(err, "listing device extensions")
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	createInfo := core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
			DepthClamp:        true,
			ShaderInt64:       true,
		},
		EnabledExtensionNames: extensionNames,
	}

	// Descriptor indexing is core from Vulkan 1.2; older devices need the extension.
	_, indexingExtension := extensions[ext_descriptor_indexing.ExtensionName]
	if indexingExtension {
		createInfo.EnabledExtensionNames = append(createInfo.EnabledExtensionNames, ext_descriptor_indexing.ExtensionName)
	}
	createInfo.Next = indexingFeatures(createInfo.Next)

	_, addressSupported := extensions[khr_buffer_device_address.ExtensionName]
	if addressSupported {
		createInfo.EnabledExtensionNames = append(createInfo.EnabledExtensionNames, khr_buffer_device_address.ExtensionName)
		createInfo.Next = addressFeatures(createInfo.Next)
	}

	d.driver, _, err = d.instanceDriver.CreateDevice(d.physicalDevice, nil, createInfo)
	if err != nil {
		return errors.Wrap(err, "creating logical device")
	}

	if addressSupported {
		d.addressExtension = khr_buffer_device_address.CreateExtensionDriverFromCoreDriver(d.driver)
	} else {
		d.logger.Warn("buffer device address unsupported, meshes cannot be drawn",
			slog.String("extension", khr_buffer_device_address.ExtensionName))
	}

	d.graphicsQueue = d.driver.GetQueue(d.graphicsFamily, 0)
	d.presentQueue = d.driver.GetQueue(d.presentFamily, 0)
	return nil
}
