package mesh

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/edbr/internal/camera"
)

// meshData is a decoded mesh before upload.
type meshData struct {
	vertices []Vertex
	indices  []uint32
	bounds   camera.Sphere
}

// vertexKey identifies a unique face corner.
type vertexKey struct {
	position, uv, normal int
}

// decodeOBJ triangulates every face as a fan and merges identical corners.
// mtl may be nil.
func decodeOBJ(objReader, mtlReader io.Reader) (meshData, error) {
	if mtlReader == nil {
		mtlReader = strings.NewReader("")
	}

	decoder, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return meshData{}, errors.Wrap(err, "decoding obj")
	}

	var data meshData
	uniqueVertices := make(map[vertexKey]uint32)
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				data.addVertex(decoder, uniqueVertices, face, 0)
				data.addVertex(decoder, uniqueVertices, face, i-1)
				data.addVertex(decoder, uniqueVertices, face, i)
			}
		}
	}

	if len(data.indices) == 0 {
		return meshData{}, errors.New("obj has no faces")
	}

	positions := make([]mgl32.Vec3, len(data.vertices))
	for i, v := range data.vertices {
		positions[i] = v.Position
	}
	data.bounds = camera.BoundingSphere(positions)
	return data, nil
}

func (data *meshData) addVertex(decoder *obj.Decoder, uniqueVertices map[vertexKey]uint32, face obj.Face, faceIndex int) {
	key := vertexKey{position: face.Vertices[faceIndex], uv: -1, normal: -1}
	if faceIndex < len(face.Uvs) {
		key.uv = face.Uvs[faceIndex]
	}
	if faceIndex < len(face.Normals) {
		key.normal = face.Normals[faceIndex]
	}

	index, vertexExists := uniqueVertices[key]
	if !vertexExists {
		index = uint32(len(data.vertices))
		uniqueVertices[key] = index
		data.vertices = append(data.vertices, makeVertex(decoder, key))
	}

	data.indices = append(data.indices, index)
}

func makeVertex(decoder *obj.Decoder, key vertexKey) Vertex {
	v := Vertex{
		Position: mgl32.Vec3{
			decoder.Vertices[key.position*3],
			decoder.Vertices[key.position*3+1],
			decoder.Vertices[key.position*3+2],
		},
	}

	if key.uv >= 0 && key.uv*2+1 < len(decoder.Uvs) {
		v.UVx = decoder.Uvs[key.uv*2]
		v.UVy = 1.0 - decoder.Uvs[key.uv*2+1]
	}

	if key.normal >= 0 && key.normal*3+2 < len(decoder.Normals) {
		v.Normal = mgl32.Vec3{
			decoder.Normals[key.normal*3],
			decoder.Normals[key.normal*3+1],
			decoder.Normals[key.normal*3+2],
		}
	}
	return v
}
