package gfx

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// ImageCreateInfo describes an image to create. It is built by loaders and
// the game layer and never stored.
//
// Zero values are normalized on creation: the created Image reports an
// Extent.Depth of 1, one layer and a single sample where the descriptor left
// them at 0, and MipMap adds transfer src and dst to Usage. Every other field
// is copied as given.
type ImageCreateInfo struct {
	Format core1_0.Format
	Usage  core1_0.ImageUsageFlags
	// Extent.Depth defaults to 1.
	Extent core1_0.Extent3D
	// Layers defaults to 1. Cubemaps need exactly 6.
	Layers    int
	Samples   core1_0.SampleCountFlags
	MipMap    bool
	IsCubemap bool
}

func (info ImageCreateInfo) extent() core1_0.Extent3D {
	extent := info.Extent
	if extent.Depth == 0 {
		extent.Depth = 1
	}
	return extent
}

func (info ImageCreateInfo) usage() core1_0.ImageUsageFlags {
	if info.MipMap {
		return info.Usage | core1_0.ImageUsageTransferSrc | core1_0.ImageUsageTransferDst
	}
	return info.Usage
}

// newImage is the metadata of an image created from info, without GPU
// objects.
func (info ImageCreateInfo) newImage() *Image {
	img := &Image{
		Format:        info.Format,
		Usage:         info.usage(),
		Extent:        info.extent(),
		Layers:        info.layers(),
		MipLevels:     info.MipLevels(),
		Samples:       info.samples(),
		IsCubemap:     info.IsCubemap,
		SampledLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
	}
	if isDepthFormat(info.Format) {
		img.SampledLayout = core1_0.ImageLayoutDepthStencilReadOnlyOptimal
	}
	return img
}

func (info ImageCreateInfo) layers() int {
	if info.Layers == 0 {
		return 1
	}
	return info.Layers
}

func (info ImageCreateInfo) samples() core1_0.SampleCountFlags {
	if info.Samples == 0 {
		return core1_0.Samples1
	}
	return info.Samples
}

// MipLevels is the full chain length when MipMap is set, 1 otherwise.
func (info ImageCreateInfo) MipLevels() int {
	if !info.MipMap {
		return 1
	}
	largest := info.Extent.Width
	if info.Extent.Height > largest {
		largest = info.Extent.Height
	}
	if largest <= 0 {
		return 1
	}
	return bits.Len(uint(largest))
}

// Validate rejects descriptors the device cannot create.
func (info ImageCreateInfo) Validate() error {
	if info.Extent.Width <= 0 || info.Extent.Height <= 0 {
		return errors.Wrapf(ErrInvalidImageInfo, "extent %dx%d", info.Extent.Width, info.Extent.Height)
	}
	if info.Layers < 0 {
		return errors.Wrapf(ErrInvalidImageInfo, "negative layer count %d", info.Layers)
	}
	if info.IsCubemap {
		if info.layers() != 6 {
			return errors.Wrapf(ErrInvalidImageInfo, "cubemap needs 6 layers, got %d", info.layers())
		}
		if info.Extent.Width != info.Extent.Height {
			return errors.Wrapf(ErrInvalidImageInfo, "cubemap faces must be square, got %dx%d", info.Extent.Width, info.Extent.Height)
		}
	}
	if info.MipMap && isDepthFormat(info.Format) {
		return errors.Wrapf(ErrInvalidImageInfo, "cannot generate mips for depth format %s", info.Format)
	}
	if info.MipMap && info.samples() != core1_0.Samples1 {
		return errors.Wrap(ErrInvalidImageInfo, "multisampled images cannot have mips")
	}
	return nil
}

func isDepthFormat(format core1_0.Format) bool {
	switch format {
	case core1_0.FormatD16UnsignedNormalized,
		core1_0.FormatD32SignedFloat,
		core1_0.FormatD32SignedFloatS8UnsignedInt,
		core1_0.FormatD24UnsignedNormalizedS8UnsignedInt:
		return true
	}
	return false
}

func aspectFor(format core1_0.Format) core1_0.ImageAspectFlags {
	if isDepthFormat(format) {
		return core1_0.ImageAspectDepth
	}
	return core1_0.ImageAspectColor
}

// formatSize is the texel size in bytes for the formats pixel data is
// uploaded in.
func formatSize(format core1_0.Format) (int, error) {
	switch format {
	case core1_0.FormatR8UnsignedNormalized:
		return 1, nil
	case core1_0.FormatR8G8UnsignedNormalized:
		return 2, nil
	case core1_0.FormatR8G8B8A8SRGB,
		core1_0.FormatR8G8B8A8UnsignedNormalized,
		core1_0.FormatB8G8R8A8SRGB,
		core1_0.FormatB8G8R8A8UnsignedNormalized,
		core1_0.FormatR32SignedFloat:
		return 4, nil
	case core1_0.FormatR16G16B16A16SignedFloat:
		return 8, nil
	case core1_0.FormatR32G32B32A32SignedFloat:
		return 16, nil
	}
	return 0, errors.Errorf("no texel size known for format %s", format)
}

// Image is a device image with its default view.
type Image struct {
	Handle core1_0.Image
	// View covers every layer and mip level: cube, 2D array or 2D.
	View core1_0.ImageView

	Format    core1_0.Format
	Usage     core1_0.ImageUsageFlags
	Extent    core1_0.Extent3D
	Layers    int
	MipLevels int
	Samples   core1_0.SampleCountFlags
	IsCubemap bool
	Name      string

	// SampledLayout is the layout shaders read the image in.
	SampledLayout core1_0.ImageLayout

	alloc allocation
}

func (img *Image) Extent2D() core1_0.Extent2D {
	return core1_0.Extent2D{Width: img.Extent.Width, Height: img.Extent.Height}
}

func (img *Image) Aspect() core1_0.ImageAspectFlags {
	return aspectFor(img.Format)
}

func (img *Image) viewType() core1_0.ImageViewType {
	switch {
	case img.IsCubemap:
		return core1_0.ImageViewTypeCube
	case img.Layers > 1:
		return core1_0.ImageViewType2DArray
	}
	return core1_0.ImageViewType2D
}

// CreateImageRaw creates an image that is not registered in the bindless
// set. The caller owns it and releases it with DestroyImage.
func (d *Device) CreateImageRaw(info ImageCreateInfo) (*Image, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	img := info.newImage()

	var flags core1_0.ImageCreateFlags
	if info.IsCubemap {
		flags |= core1_0.ImageCreateCubeCompatible
	}

	handle, _, err := d.driver.CreateImage(nil, core1_0.ImageCreateInfo{
		Flags:         flags,
		ImageType:     core1_0.ImageType2D,
		Extent:        img.Extent,
		MipLevels:     img.MipLevels,
		ArrayLayers:   img.Layers,
		Format:        img.Format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         img.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       img.Samples,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating image")
	}

	memReqs := d.driver.GetImageMemoryRequirements(handle)
	alloc, err := d.allocator.allocate(memReqs.Size, memReqs.MemoryTypeBits, AllocationCreateInfo{Usage: MemoryUsageAutoPreferDevice}, true)
	if err != nil {
		d.driver.DestroyImage(handle, nil)
		return nil, err
	}

	_, err = d.driver.BindImageMemory(handle, alloc.memory, 0)
	if err != nil {
		d.allocator.free(alloc)
		d.driver.DestroyImage(handle, nil)
		return nil, errors.Wrap(err, "binding image memory")
	}

	img.Handle = handle
	img.alloc = alloc

	img.View, err = d.CreateImageView(img, img.viewType(), 0, img.Layers)
	if err != nil {
		d.DestroyImage(img)
		return nil, err
	}
	return img, nil
}

// CreateImageView creates a view over layerCount layers of img starting at
// baseLayer, covering every mip level.
func (d *Device) CreateImageView(img *Image, viewType core1_0.ImageViewType, baseLayer, layerCount int) (core1_0.ImageView, error) {
	view, _, err := d.driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    img.Handle,
		ViewType: viewType,
		Format:   img.Format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     img.Aspect(),
			BaseMipLevel:   0,
			LevelCount:     img.MipLevels,
			BaseArrayLayer: baseLayer,
			LayerCount:     layerCount,
		},
	})
	if err != nil {
		return core1_0.ImageView{}, errors.Wrapf(err, "creating view of image %q", img.Name)
	}
	return view, nil
}

func (d *Device) DestroyImageView(view core1_0.ImageView) {
	if view.Initialized() {
		d.driver.DestroyImageView(view, nil)
	}
}

// DestroyImage releases an image created with CreateImageRaw. Images owned by
// the image cache are released with DestroyCachedImage.
func (d *Device) DestroyImage(img *Image) {
	if img == nil {
		return
	}
	d.DestroyImageView(img.View)
	if img.Handle.Initialized() {
		d.driver.DestroyImage(img.Handle, nil)
	}
	d.allocator.free(img.alloc)
	*img = Image{}
}
