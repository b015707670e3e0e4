package gfx

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// cubemapFaces are the face file names in cube layer order (+X, -X, +Y, -Y,
// +Z, -Z).
var cubemapFaces = [6]string{"right", "left", "top", "bottom", "front", "back"}

// loadCubemapFaces decodes the six faces in dir. Every face must have the
// size of the first one.
func loadCubemapFaces(dir string) ([6]imageData, error) {
	var faces [6]imageData
	for i, name := range cubemapFaces {
		path := filepath.Join(dir, name+".jpg")
		face, err := loadImageFile(path)
		if err != nil {
			return faces, err
		}
		if i > 0 && (face.width != faces[0].width || face.height != faces[0].height) {
			return faces, errors.Wrapf(ErrCubemapFaceMismatch, "%s is %dx%d, %s is %dx%d",
				path, face.width, face.height, cubemapFaces[0], faces[0].width, faces[0].height)
		}
		faces[i] = face
	}
	return faces, nil
}

// LoadCubemap loads the six faces in dir into one cube image and registers it
// in the bindless set.
func (d *Device) LoadCubemap(dir string) (ImageID, error) {
	faces, err := loadCubemapFaces(dir)
	if err != nil {
		return NullImageID, err
	}

	img, err := d.CreateImageRaw(ImageCreateInfo{
		Format:    core1_0.FormatR8G8B8A8SRGB,
		Usage:     core1_0.ImageUsageSampled | core1_0.ImageUsageTransferDst,
		Extent:    core1_0.Extent3D{Width: faces[0].width, Height: faces[0].height, Depth: 1},
		Layers:    6,
		IsCubemap: true,
	})
	if err != nil {
		return NullImageID, errors.Wrapf(err, "creating cubemap %s", dir)
	}
	img.Name = dir

	for layer, face := range faces {
		if err := d.UploadImageData(img, face.pixels, layer); err != nil {
			d.DestroyImage(img)
			return NullImageID, err
		}
	}

	id, err := d.AddImageToCache(img)
	if err != nil {
		d.DestroyImage(img)
		return NullImageID, err
	}
	return id, nil
}
