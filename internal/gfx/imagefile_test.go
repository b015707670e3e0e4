package gfx

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func writeCubemap(t *testing.T, dir string, size int) {
	t.Helper()
	for _, face := range cubemapFaces {
		writeJPEG(t, filepath.Join(dir, face+".jpg"), size, size)
	}
}

func TestDecodeImageStraightAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(2, 3, 4, 4))
	src.SetNRGBA(2, 3, color.NRGBA{R: 255, G: 0, B: 0, A: 128})
	src.SetNRGBA(3, 3, color.NRGBA{R: 0, G: 0, B: 255, A: 255})

	data := decodeImage(src)
	assert.Equal(t, 2, data.width)
	assert.Equal(t, 1, data.height)
	assert.Equal(t, []byte{255, 0, 0, 128, 0, 0, 255, 255}, data.pixels)
}

func TestLoadImageFilePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "white.png")
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	data, err := loadImageFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, data.width)
	assert.Equal(t, 2, data.height)
	assert.Len(t, data.pixels, 3*2*4)
}

func TestLoadImageFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := loadImageFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	_, err = loadImageFile(garbage)
	assert.Error(t, err)
}

func TestLoadCubemapFaces(t *testing.T) {
	dir := t.TempDir()
	writeCubemap(t, dir, 16)

	faces, err := loadCubemapFaces(dir)
	require.NoError(t, err)
	for i, face := range faces {
		assert.Equal(t, 16, face.width, "face %d", i)
		assert.Equal(t, 16, face.height, "face %d", i)
		assert.Len(t, face.pixels, 16*16*4, "face %d", i)
	}
}

func TestLoadCubemapFacesMismatch(t *testing.T) {
	dir := t.TempDir()
	writeCubemap(t, dir, 16)
	writeJPEG(t, filepath.Join(dir, "top.jpg"), 8, 8)

	_, err := loadCubemapFaces(dir)
	assert.True(t, errors.Is(err, ErrCubemapFaceMismatch), "got %v", err)
}

func TestLoadCubemapFacesMissing(t *testing.T) {
	dir := t.TempDir()
	writeCubemap(t, dir, 4)
	require.NoError(t, os.Remove(filepath.Join(dir, "back.jpg")))

	_, err := loadCubemapFaces(dir)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrCubemapFaceMismatch))
}
