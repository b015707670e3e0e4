package gfx

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageData is decoded RGBA8 pixel data, rows tightly packed.
type imageData struct {
	width  int
	height int
	pixels []byte
}

// decodeImage decodes any registered format into straight alpha RGBA8.
func decodeImage(img image.Image) imageData {
	bounds := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Stride != bounds.Dx()*4 || bounds.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}
	return imageData{
		width:  bounds.Dx(),
		height: bounds.Dy(),
		pixels: nrgba.Pix,
	}
}

func loadImageFile(path string) (imageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return imageData{}, errors.Wrap(err, "opening image")
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return imageData{}, errors.Wrapf(err, "decoding %s", path)
	}
	data := decodeImage(img)
	if data.width == 0 || data.height == 0 {
		return imageData{}, errors.Errorf("%s image %s is empty", format, path)
	}
	return data, nil
}

// LoadImageFromFileRaw decodes the file at path into a new image the caller
// owns. format must be an 8-bit RGBA format.
func (d *Device) LoadImageFromFileRaw(path string, format core1_0.Format, usage core1_0.ImageUsageFlags, mipMap bool) (*Image, error) {
	data, err := loadImageFile(path)
	if err != nil {
		return nil, err
	}
	return d.createImageWithData(ImageCreateInfo{
		Format: format,
		Usage:  usage | core1_0.ImageUsageSampled | core1_0.ImageUsageTransferDst,
		Extent: core1_0.Extent3D{Width: data.width, Height: data.height, Depth: 1},
		MipMap: mipMap,
	}, path, data.pixels)
}

// LoadImageFromFile decodes the file at path and registers it in the bindless
// set.
func (d *Device) LoadImageFromFile(path string, format core1_0.Format, usage core1_0.ImageUsageFlags, mipMap bool) (ImageID, error) {
	img, err := d.LoadImageFromFileRaw(path, format, usage, mipMap)
	if err != nil {
		return NullImageID, err
	}
	id, err := d.AddImageToCache(img)
	if err != nil {
		d.DestroyImage(img)
		return NullImageID, err
	}
	return id, nil
}
