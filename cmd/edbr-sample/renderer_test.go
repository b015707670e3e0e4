package main

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/edbr/internal/gfx"
)

// Offsets follow the std430 SceneDataBuffer block in shaders/scene_data.glsl.
func TestSceneDataLayout(t *testing.T) {
	data, err := gfx.EncodeData(sceneData{
		CameraPos:   mgl32.Vec4{1, 2, 3, 1},
		CameraFront: mgl32.Vec4{0, 0, -1, 0},
		ShadowMapID: 7,
	})
	require.NoError(t, err)
	require.Len(t, data, 64+16+16+16+16+4*64+16)

	vec4At := func(offset int) mgl32.Vec4 {
		var v mgl32.Vec4
		for i := range v {
			v[i] = math.Float32frombits(common.ByteOrder.Uint32(data[offset+4*i:]))
		}
		return v
	}
	assert.Equal(t, mgl32.Vec4{1, 2, 3, 1}, vec4At(64))
	assert.Equal(t, mgl32.Vec4{0, 0, -1, 0}, vec4At(80))
	assert.Equal(t, uint32(7), common.ByteOrder.Uint32(data[64+16+16+16+16+4*64:]))
}

func TestMeshPushConstantsSize(t *testing.T) {
	data, err := gfx.EncodeData(meshPushConstants{})
	require.NoError(t, err)
	assert.Len(t, data, meshPushConstantsSize)
}
