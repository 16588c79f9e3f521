package wgpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/naga"
	webgpu "github.com/gogpu/wgpu"
)

//go:embed shaders/accumulate.wgsl
var accumulateShaderWGSL string

// AccumulateWorkgroupSize is the compute workgroup edge of the
// accumulation shader.
const AccumulateWorkgroupSize = 8

// AccumulateParamsSize is the uniform block size of the accumulation
// shader.
const AccumulateParamsSize = 16

// AccumulateShaderSource returns the WGSL source of the accumulation
// compute shader.
func AccumulateShaderSource() string { return accumulateShaderWGSL }

// CompileAccumulateShader compiles the accumulation shader to SPIR-V words.
func CompileAccumulateShader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(accumulateShaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile accumulate shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

// NewAccumulateModule compiles the accumulation shader and creates a shader
// module on device.
func NewAccumulateModule(device *webgpu.Device) (*webgpu.ShaderModule, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	words, err := CompileAccumulateShader()
	if err != nil {
		return nil, err
	}
	return device.CreateShaderModule(&webgpu.ShaderModuleDescriptor{
		Label: "recorder_accumulate",
		SPIRV: words,
	})
}

// AccumulateParams is the uniform block consumed by the shader.
type AccumulateParams struct {
	Width   uint32
	Height  uint32
	Weight  float32
	Resolve bool
}

// Bytes serializes the params in std140 layout.
func (p AccumulateParams) Bytes() []byte {
	b := make([]byte, AccumulateParamsSize)
	binary.LittleEndian.PutUint32(b[0:], p.Width)
	binary.LittleEndian.PutUint32(b[4:], p.Height)
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(p.Weight))
	if p.Resolve {
		binary.LittleEndian.PutUint32(b[12:], 1)
	}
	return b
}

// Workgroups returns the dispatch size covering a width x height frame.
func Workgroups(width, height int) (x, y uint32) {
	x = uint32((width + AccumulateWorkgroupSize - 1) / AccumulateWorkgroupSize)
	y = uint32((height + AccumulateWorkgroupSize - 1) / AccumulateWorkgroupSize)
	return x, y
}
