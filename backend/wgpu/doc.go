// Package wgpu reads recorded frames back from the GPU using gogpu/wgpu.
//
// gogpu/wgpu is a Pure Go WebGPU implementation supporting Vulkan, Metal
// and DX12 depending on the platform.
//
// # Readback
//
// Backend implements readback.Backend. Each request copies the texture
// into a MapRead staging buffer with rows padded to
// CopyBytesPerRowAlignment, submits the copy and maps the buffer
// asynchronously. The map is polled once per frame and the padded rows are
// compacted into the pool buffer when it completes.
//
//	gpu, err := wgpu.OpenGPU("capture")
//	tex, err := wgpu.NewCaptureTexture(gpu.Device, 1920, 1080,
//	    gputypes.TextureFormatRGBA8Unorm, "frame")
//	backend, err := wgpu.NewBackend(gpu.Device, "readback")
//	s, err := recorder.NewSession(&settings,
//	    recorder.WithSource(tex),
//	    recorder.WithReadbackBackend(backend))
//
// # Accumulation
//
// The accumulate compute shader sums weighted sub-frames into a float
// buffer and resolves it on the last sample. It is compiled from WGSL to
// SPIR-V with gogpu/naga.
package wgpu
