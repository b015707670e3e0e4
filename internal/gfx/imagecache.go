package gfx

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// imageCacheBackend is what the cache needs from the device.
type imageCacheBackend interface {
	writeBindlessImage(id ImageID, img *Image)
	// retire runs fn once every frame in flight has completed.
	retire(fn func())
	destroyImage(img *Image)
}

// ImageCache owns every image registered in the bindless set. An image's ID
// is its slot in the set.
type ImageCache struct {
	backend  imageCacheBackend
	logger   *slog.Logger
	capacity int

	images []*Image
	ids    map[*Image]ImageID
	// free holds IDs whose images have retired and can be handed out again.
	free []ImageID
}

func newImageCache(backend imageCacheBackend, capacity int, logger *slog.Logger) *ImageCache {
	return &ImageCache{
		backend:  backend,
		logger:   logger,
		capacity: capacity,
		ids:      make(map[*Image]ImageID),
	}
}

// Add registers img and returns its ID.
func (c *ImageCache) Add(img *Image) (ImageID, error) {
	if img == nil {
		return NullImageID, errors.AssertionFailedf("adding nil image to cache")
	}
	if id, ok := c.ids[img]; ok {
		return NullImageID, errors.AssertionFailedf("image %q already cached with id %d", img.Name, id)
	}

	var id ImageID
	if n := len(c.free); n > 0 {
		id = c.free[n-1]
		c.free = c.free[:n-1]
		c.images[id] = img
	} else {
		if len(c.images) >= c.capacity {
			return NullImageID, errors.Errorf("bindless image capacity of %d exhausted", c.capacity)
		}
		id = ImageID(len(c.images))
		c.images = append(c.images, img)
	}

	c.ids[img] = id
	c.backend.writeBindlessImage(id, img)
	c.logger.Debug("ImageCache::Add", slog.String("Name", img.Name), slog.Int("ID", int(id)))
	return id, nil
}

// Replace puts img in slot id. The previous image is destroyed once no frame
// in flight can sample it.
func (c *ImageCache) Replace(id ImageID, img *Image) error {
	old := c.Get(id)
	if old == nil {
		return errors.Wrapf(ErrUnknownImage, "replacing id %d", id)
	}
	if other, ok := c.ids[img]; ok {
		return errors.AssertionFailedf("image %q already cached with id %d", img.Name, other)
	}

	delete(c.ids, old)
	c.images[id] = img
	c.ids[img] = id
	c.backend.writeBindlessImage(id, img)
	c.backend.retire(func() { c.backend.destroyImage(old) })
	return nil
}

// Remove unregisters id. The slot samples the white image until the ID is
// reused, which happens only after every frame in flight has retired.
func (c *ImageCache) Remove(id ImageID) error {
	if id == WhiteImageID {
		return errors.AssertionFailedf("the white image cannot be removed")
	}
	img := c.Get(id)
	if img == nil {
		return errors.Wrapf(ErrUnknownImage, "removing id %d", id)
	}

	delete(c.ids, img)
	c.images[id] = nil
	c.backend.writeBindlessImage(id, c.images[WhiteImageID])
	c.backend.retire(func() {
		c.backend.destroyImage(img)
		c.free = append(c.free, id)
	})
	return nil
}

// Get returns the image in slot id, or nil.
func (c *ImageCache) Get(id ImageID) *Image {
	if int(id) >= len(c.images) {
		return nil
	}
	return c.images[id]
}

func (c *ImageCache) Len() int {
	return len(c.ids)
}

// destroyAll releases every cached image. Only valid once the device is
// idle and the retirement queue flushed.
func (c *ImageCache) destroyAll() {
	for _, img := range c.images {
		if img != nil {
			c.backend.destroyImage(img)
		}
	}
	c.images = nil
	c.ids = make(map[*Image]ImageID)
	c.free = nil
}

func (d *Device) retire(fn func()) {
	d.retired.Push(d.frameNumber, fn)
}

func (d *Device) destroyImage(img *Image) {
	d.DestroyImage(img)
}
