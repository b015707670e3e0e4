package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/exp/slog"
)

// CreateImage creates an image, uploads pixels into layer 0 when given and
// registers it in the bindless set. If id is not NullImageID the new image
// replaces the one in that slot.
func (d *Device) CreateImage(info ImageCreateInfo, debugName string, pixels []byte, id ImageID) (ImageID, error) {
	img, err := d.createImageWithData(info, debugName, pixels)
	if err != nil {
		return NullImageID, err
	}

	if id != NullImageID {
		if err := d.imageCache.Replace(id, img); err != nil {
			d.DestroyImage(img)
			return NullImageID, err
		}
		return id, nil
	}

	id, err = d.AddImageToCache(img)
	if err != nil {
		d.DestroyImage(img)
		return NullImageID, err
	}
	return id, nil
}

func (d *Device) createImageWithData(info ImageCreateInfo, debugName string, pixels []byte) (*Image, error) {
	if pixels != nil {
		info.Usage |= core1_0.ImageUsageTransferDst
	}
	img, err := d.CreateImageRaw(info)
	if err != nil {
		return nil, errors.Wrapf(err, "creating image %q", debugName)
	}
	img.Name = debugName

	if pixels != nil {
		if err := d.UploadImageData(img, pixels, 0); err != nil {
			d.DestroyImage(img)
			return nil, err
		}
	}
	return img, nil
}

// AddImageToCache registers img in the bindless set. The cache owns it from
// then on.
func (d *Device) AddImageToCache(img *Image) (ImageID, error) {
	return d.imageCache.Add(img)
}

// GetImage returns the cached image with the given ID, or nil.
func (d *Device) GetImage(id ImageID) *Image {
	return d.imageCache.Get(id)
}

// DestroyCachedImage unregisters id. The image is destroyed and the ID freed
// once every frame in flight has retired.
func (d *Device) DestroyCachedImage(id ImageID) error {
	return d.imageCache.Remove(id)
}

func (d *Device) WhiteImageID() ImageID {
	return WhiteImageID
}

// UploadImageData copies pixels into one layer of img and leaves every mip of
// that layer in img.SampledLayout. Mips are regenerated when img has them.
func (d *Device) UploadImageData(img *Image, pixels []byte, layer int) error {
	if layer < 0 || layer >= img.Layers {
		return errors.AssertionFailedf("layer %d out of range for image %q with %d layers", layer, img.Name, img.Layers)
	}
	texelSize, err := formatSize(img.Format)
	if err != nil {
		return err
	}
	expected := img.Extent.Width * img.Extent.Height * img.Extent.Depth * texelSize
	if len(pixels) != expected {
		return errors.AssertionFailedf("image %q expects %d bytes per layer, got %d", img.Name, expected, len(pixels))
	}
	if img.MipLevels > 1 && !d.caps.SupportsLinearBlit(img.Format) {
		return errors.Errorf("format %s of image %q does not support linear blitting", img.Format, img.Name)
	}

	staging, err := d.CreateBuffer(len(pixels), core1_0.BufferUsageTransferSrc, MemoryUsageAutoPreferHost)
	if err != nil {
		return err
	}
	defer d.DestroyBuffer(staging)

	if err := staging.Write(0, pixels); err != nil {
		return err
	}

	err = d.ImmediateSubmit(func(cmd core1_0.CommandBuffer) error {
		err := d.ImageBarrier(cmd, ImageBarrier{
			Image:      img,
			OldLayout:  core1_0.ImageLayoutUndefined,
			NewLayout:  core1_0.ImageLayoutTransferDstOptimal,
			SrcStage:   core1_0.PipelineStageTopOfPipe,
			DstStage:   core1_0.PipelineStageTransfer,
			DstAccess:  core1_0.AccessTransferWrite,
			BaseLayer:  layer,
			LayerCount: 1,
		})
		if err != nil {
			return err
		}

		err = d.driver.CmdCopyBufferToImage(cmd, staging.Handle, img.Handle, core1_0.ImageLayoutTransferDstOptimal, core1_0.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,
			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     img.Aspect(),
				MipLevel:       0,
				BaseArrayLayer: layer,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: img.Extent,
		})
		if err != nil {
			return errors.Wrap(err, "copying staging buffer to image")
		}

		if img.MipLevels > 1 {
			return d.generateMipmaps(cmd, img, layer)
		}

		return d.ImageBarrier(cmd, ImageBarrier{
			Image:      img,
			OldLayout:  core1_0.ImageLayoutTransferDstOptimal,
			NewLayout:  img.SampledLayout,
			SrcStage:   core1_0.PipelineStageTransfer,
			SrcAccess:  core1_0.AccessTransferWrite,
			DstStage:   core1_0.PipelineStageFragmentShader,
			DstAccess:  core1_0.AccessShaderRead,
			BaseLayer:  layer,
			LayerCount: 1,
		})
	})
	if err != nil {
		return errors.Wrapf(err, "uploading layer %d of image %q", layer, img.Name)
	}

	d.logger.Debug("Device::UploadImageData",
		slog.String("Name", img.Name),
		slog.Int("Layer", layer),
		slog.Int("Bytes", len(pixels)),
	)
	return nil
}

// generateMipmaps expects every mip of layer in TransferDstOptimal with mip 0
// written. It blits each level from the previous one and leaves the
// whole layer in img.SampledLayout.
func (d *Device) generateMipmaps(cmd core1_0.CommandBuffer, img *Image, layer int) error {
	mipWidth := img.Extent.Width
	mipHeight := img.Extent.Height

	for i := 1; i < img.MipLevels; i++ {
		err := d.ImageBarrier(cmd, ImageBarrier{
			Image:      img,
			OldLayout:  core1_0.ImageLayoutTransferDstOptimal,
			NewLayout:  core1_0.ImageLayoutTransferSrcOptimal,
			SrcStage:   core1_0.PipelineStageTransfer,
			SrcAccess:  core1_0.AccessTransferWrite,
			DstStage:   core1_0.PipelineStageTransfer,
			DstAccess:  core1_0.AccessTransferRead,
			BaseLayer:  layer,
			LayerCount: 1,
			BaseMip:    i - 1,
			MipCount:   1,
		})
		if err != nil {
			return err
		}

		nextWidth := max(mipWidth/2, 1)
		nextHeight := max(mipHeight/2, 1)

		err = d.driver.CmdBlitImage(cmd,
			img.Handle, core1_0.ImageLayoutTransferSrcOptimal,
			img.Handle, core1_0.ImageLayoutTransferDstOptimal,
			[]core1_0.ImageBlit{
				{
					SrcSubresource: core1_0.ImageSubresourceLayers{
						AspectMask:     core1_0.ImageAspectColor,
						MipLevel:       i - 1,
						BaseArrayLayer: layer,
						LayerCount:     1,
					},
					SrcOffsets: [2]core1_0.Offset3D{
						{X: 0, Y: 0, Z: 0},
						{X: mipWidth, Y: mipHeight, Z: 1},
					},
					DstSubresource: core1_0.ImageSubresourceLayers{
						AspectMask:     core1_0.ImageAspectColor,
						MipLevel:       i,
						BaseArrayLayer: layer,
						LayerCount:     1,
					},
					DstOffsets: [2]core1_0.Offset3D{
						{X: 0, Y: 0, Z: 0},
						{X: nextWidth, Y: nextHeight, Z: 1},
					},
				},
			},
			core1_0.FilterLinear)
		if err != nil {
			return errors.Wrapf(err, "blitting mip %d", i)
		}

		err = d.ImageBarrier(cmd, ImageBarrier{
			Image:      img,
			OldLayout:  core1_0.ImageLayoutTransferSrcOptimal,
			NewLayout:  img.SampledLayout,
			SrcStage:   core1_0.PipelineStageTransfer,
			SrcAccess:  core1_0.AccessTransferRead,
			DstStage:   core1_0.PipelineStageFragmentShader,
			DstAccess:  core1_0.AccessShaderRead,
			BaseLayer:  layer,
			LayerCount: 1,
			BaseMip:    i - 1,
			MipCount:   1,
		})
		if err != nil {
			return err
		}

		mipWidth, mipHeight = nextWidth, nextHeight
	}

	return d.ImageBarrier(cmd, ImageBarrier{
		Image:      img,
		OldLayout:  core1_0.ImageLayoutTransferDstOptimal,
		NewLayout:  img.SampledLayout,
		SrcStage:   core1_0.PipelineStageTransfer,
		SrcAccess:  core1_0.AccessTransferWrite,
		DstStage:   core1_0.PipelineStageFragmentShader,
		DstAccess:  core1_0.AccessShaderRead,
		BaseLayer:  layer,
		LayerCount: 1,
		BaseMip:    img.MipLevels - 1,
		MipCount:   1,
	})
}
