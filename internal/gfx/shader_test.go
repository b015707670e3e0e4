package gfx

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToBytecode(t *testing.T) {
	code, err := bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x07230203, 1}, code)

	_, err = bytesToBytecode([]byte{1, 2, 3})
	assert.Error(t, err)
	_, err = bytesToBytecode(nil)
	assert.Error(t, err)
}

func TestEncodeData(t *testing.T) {
	data := struct {
		MVP     mgl32.Mat4
		Address uint64
	}{
		MVP:     mgl32.Ident4(),
		Address: 0x1122334455667788,
	}

	encoded, err := EncodeData(data)
	require.NoError(t, err)
	assert.Len(t, encoded, 72)
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, encoded[0:4], "column major 1.0")
	assert.Equal(t, byte(0x88), encoded[64])

	_, err = EncodeData(struct{ S []int }{})
	assert.Error(t, err)
}
