package mesh

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/edbr/internal/gfx"
	"golang.org/x/exp/slog"
)

// Uploader creates mesh buffers and fills them. Device implements it.
type Uploader interface {
	gfx.BufferAllocator
	UploadBuffer(dst *gfx.Buffer, offset int, data []byte) error
	// DestroyBufferDeferred releases a buffer once no frame in flight can
	// read it.
	DestroyBufferDeferred(b *gfx.Buffer)
}

var _ Uploader = (*gfx.Device)(nil)

// Cache owns every uploaded mesh. IDs are indices and stay valid until
// Cleanup.
type Cache struct {
	uploader Uploader
	logger   *slog.Logger
	meshes   []Mesh
}

func NewCache(uploader Uploader, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{uploader: uploader, logger: logger}
}

// LoadOBJ decodes an OBJ file and its optional material library and uploads
// the result. mtlPath may be empty.
func (c *Cache) LoadOBJ(objPath, mtlPath string) (ID, error) {
	data, err := readOBJ(objPath, mtlPath)
	if err != nil {
		return NullID, err
	}

	id, err := c.upload(data)
	if err != nil {
		return NullID, errors.Wrapf(err, "uploading %s", objPath)
	}

	c.logger.Debug("mesh loaded",
		slog.String("path", objPath),
		slog.Int("vertices", len(data.vertices)),
		slog.Int("indices", len(data.indices)),
		slog.Uint64("id", uint64(id)),
	)
	return id, nil
}

// ReloadOBJ replaces mesh id with the current contents of objPath. The old
// buffers may still be read by frames in flight and are released once those
// retire. On error the old mesh stays in place. Draw commands built from the
// old mesh keep its bounds until rebuilt.
func (c *Cache) ReloadOBJ(id ID, objPath, mtlPath string) error {
	if c.Get(id) == nil {
		return errors.AssertionFailedf("reloading unknown mesh %d", id)
	}

	data, err := readOBJ(objPath, mtlPath)
	if err != nil {
		return err
	}

	m, err := c.uploadMesh(data)
	if err != nil {
		return errors.Wrapf(err, "uploading %s", objPath)
	}

	old := c.meshes[id]
	c.uploader.DestroyBufferDeferred(old.VertexBuffer)
	c.uploader.DestroyBufferDeferred(old.IndexBuffer)
	c.meshes[id] = m

	c.logger.Debug("mesh reloaded",
		slog.String("path", objPath),
		slog.Uint64("id", uint64(id)),
	)
	return nil
}

func readOBJ(objPath, mtlPath string) (meshData, error) {
	objFile, err := os.Open(objPath)
	if err != nil {
		return meshData{}, errors.Wrap(err, "opening mesh")
	}
	defer objFile.Close()

	var mtlReader io.Reader
	if mtlPath != "" {
		mtlFile, err := os.Open(mtlPath)
		if err != nil {
			return meshData{}, errors.Wrap(err, "opening material library")
		}
		defer mtlFile.Close()
		mtlReader = mtlFile
	}

	data, err := decodeOBJ(objFile, mtlReader)
	if err != nil {
		return meshData{}, errors.Wrapf(err, "loading %s", objPath)
	}
	return data, nil
}

func (c *Cache) upload(data meshData) (ID, error) {
	m, err := c.uploadMesh(data)
	if err != nil {
		return NullID, err
	}
	return c.Add(m), nil
}

func (c *Cache) uploadMesh(data meshData) (Mesh, error) {
	vertexBytes, err := gfx.EncodeData(data.vertices)
	if err != nil {
		return Mesh{}, err
	}
	indexBytes, err := gfx.EncodeData(data.indices)
	if err != nil {
		return Mesh{}, err
	}

	m := Mesh{NumIndices: len(data.indices), Bounds: data.bounds}

	m.VertexBuffer, err = c.uploader.CreateBuffer(len(vertexBytes),
		core1_0.BufferUsageStorageBuffer|core1_0.BufferUsageTransferDst|gfx.BufferUsageShaderDeviceAddress,
		gfx.MemoryUsageAutoPreferDevice)
	if err != nil {
		return Mesh{}, err
	}

	m.IndexBuffer, err = c.uploader.CreateBuffer(len(indexBytes),
		core1_0.BufferUsageIndexBuffer|core1_0.BufferUsageTransferDst,
		gfx.MemoryUsageAutoPreferDevice)
	if err != nil {
		c.uploader.DestroyBuffer(m.VertexBuffer)
		return Mesh{}, err
	}

	err = c.uploader.UploadBuffer(m.VertexBuffer, 0, vertexBytes)
	if err == nil {
		err = c.uploader.UploadBuffer(m.IndexBuffer, 0, indexBytes)
	}
	if err != nil {
		c.uploader.DestroyBuffer(m.VertexBuffer)
		c.uploader.DestroyBuffer(m.IndexBuffer)
		return Mesh{}, err
	}
	return m, nil
}

// Add registers an already uploaded mesh. The cache takes ownership of its
// buffers.
func (c *Cache) Add(m Mesh) ID {
	c.meshes = append(c.meshes, m)
	return ID(len(c.meshes) - 1)
}

// Get returns the mesh for id, or nil if id is unknown.
func (c *Cache) Get(id ID) *Mesh {
	if id == NullID || int(id) >= len(c.meshes) {
		return nil
	}
	return &c.meshes[id]
}

func (c *Cache) Len() int {
	return len(c.meshes)
}

// Cleanup destroys every mesh buffer. The GPU must be idle.
func (c *Cache) Cleanup() {
	for i := range c.meshes {
		c.uploader.DestroyBuffer(c.meshes[i].VertexBuffer)
		c.uploader.DestroyBuffer(c.meshes[i].IndexBuffer)
	}
	c.meshes = nil
}
