// Package mesh loads triangle meshes into GPU buffers and describes how to
// draw them.
package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/edbr/internal/camera"
	"github.com/vkngwrapper/edbr/internal/gfx"
)

// ID indexes meshes in a Cache.
type ID uint

// NullID means "no mesh".
const NullID ID = math.MaxUint

// Vertex is the GPU vertex layout shaders pull through the vertex buffer
// address. UVs are split to keep 16 byte alignment.
type Vertex struct {
	Position mgl32.Vec3
	UVx      float32
	Normal   mgl32.Vec3
	UVy      float32
}

// Mesh is an uploaded mesh. VertexBuffer holds Vertex values and is read
// through its device address, IndexBuffer holds uint32 indices.
type Mesh struct {
	VertexBuffer *gfx.Buffer
	IndexBuffer  *gfx.Buffer
	NumIndices   int
	// Bounds is the bounding sphere in model space.
	Bounds camera.Sphere
}

// DrawCommand is one mesh instance to draw this frame.
type DrawCommand struct {
	MeshID    ID
	Transform mgl32.Mat4
	// WorldBounds is the mesh's bounding sphere moved by Transform.
	WorldBounds camera.Sphere
	CastShadow  bool
	// SkinnedVertexBuffer replaces the mesh's vertex buffer when set.
	SkinnedVertexBuffer *gfx.Buffer
}

// NewDrawCommand places m at transform.
func NewDrawCommand(id ID, m *Mesh, transform mgl32.Mat4, castShadow bool) DrawCommand {
	return DrawCommand{
		MeshID:      id,
		Transform:   transform,
		WorldBounds: m.Bounds.Transform(transform),
		CastShadow:  castShadow,
	}
}

// VertexBufferAddress is the address shaders should pull vertices from.
func (dc *DrawCommand) VertexBufferAddress(m *Mesh) uint64 {
	if dc.SkinnedVertexBuffer != nil {
		return dc.SkinnedVertexBuffer.Address
	}
	return m.VertexBuffer.Address
}
