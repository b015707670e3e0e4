package gfx

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Errorf("SPIR-V size %d is not a positive multiple of 4", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode, nil
}

// loadShaderModule reads a compiled SPIR-V file from the shader directory.
func (d *Device) loadShaderModule(name string) (core1_0.ShaderModule, error) {
	path := filepath.Join(d.cfg.ShaderDir, name)
	shaderBytes, err := os.ReadFile(path)
	if err != nil {
		return core1_0.ShaderModule{}, errors.Wrap(err, "reading shader")
	}

	code, err := bytesToBytecode(shaderBytes)
	if err != nil {
		return core1_0.ShaderModule{}, errors.Wrapf(err, "loading %s", path)
	}

	module, _, err := d.driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	if err != nil {
		return core1_0.ShaderModule{}, errors.Wrapf(err, "creating shader module %s", path)
	}
	return module, nil
}

// EncodeData lays out data the way shaders read it: fixed size values in
// the device's byte order, no padding added.
func EncodeData(data any) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return nil, errors.Wrap(err, "encoding shader data")
	}
	return buf.Bytes(), nil
}
