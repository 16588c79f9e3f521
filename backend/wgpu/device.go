package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	webgpu "github.com/gogpu/wgpu"
)

// ErrTextureTooLarge is returned when a capture size exceeds the device limits.
var ErrTextureTooLarge = errors.New("wgpu: capture size exceeds device limits")

// GPUInfo contains information about the selected GPU.
type GPUInfo struct {
	// Name is the GPU name (e.g., "NVIDIA GeForce RTX 3080").
	Name string
	// Vendor is the GPU vendor.
	Vendor string
	// DeviceType is the type of GPU (discrete, integrated, etc.).
	DeviceType gputypes.DeviceType
	// Backend is the graphics API in use (Vulkan, Metal, DX12).
	Backend gputypes.Backend
	// Driver is the driver version string.
	Driver string
}

// String returns a human-readable description of the GPU.
func (g GPUInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", g.Name, g.DeviceType, g.Backend)
}

func gpuInfo(info gputypes.AdapterInfo) GPUInfo {
	return GPUInfo{
		Name:       info.Name,
		Vendor:     info.Vendor,
		DeviceType: info.DeviceType,
		Backend:    info.Backend,
		Driver:     info.Driver,
	}
}

// GPU is a headless device for offscreen recording.
type GPU struct {
	Instance *webgpu.Instance
	Adapter  *webgpu.Adapter
	Device   *webgpu.Device
	Info     GPUInfo
}

// OpenGPU creates an instance, picks the high-performance adapter and
// opens a device with default limits.
func OpenGPU(label string) (*GPU, error) {
	inst, err := webgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapter, err := inst.RequestAdapter(&webgpu.RequestAdapterOptions{
		PowerPreference: webgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		inst.Release()
		return nil, fmt.Errorf("wgpu: request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(&webgpu.DeviceDescriptor{
		Label:          label,
		RequiredLimits: webgpu.DefaultLimits(),
	})
	if err != nil {
		adapter.Release()
		inst.Release()
		return nil, fmt.Errorf("wgpu: create device: %w", err)
	}

	g := &GPU{Instance: inst, Adapter: adapter, Device: device, Info: gpuInfo(adapter.Info())}
	slogger().Info("wgpu: GPU", "gpu", g.Info.String())
	if g.Info.Driver != "" {
		slogger().Debug("wgpu: driver", "driver", g.Info.Driver)
	}
	return g, nil
}

// CheckCaptureSize verifies that the device can hold a width x height
// texture and its staging buffer.
func (g *GPU) CheckCaptureSize(width, height int, format gputypes.TextureFormat) error {
	return checkCaptureSize(g.Device.Limits(), width, height, format)
}

func checkCaptureSize(limits gputypes.Limits, width, height int, format gputypes.TextureFormat) error {
	maxDim := int(limits.MaxTextureDimension2D)
	if width > maxDim || height > maxDim {
		return fmt.Errorf("%w: %dx%d, max dimension %d", ErrTextureTooLarge, width, height, maxDim)
	}
	if _, size := StagingLayout(width, height, format); uint64(size) > limits.MaxBufferSize {
		return fmt.Errorf("%w: staging buffer of %d bytes, max %d", ErrTextureTooLarge, size, limits.MaxBufferSize)
	}
	return nil
}

// Close releases the device, the adapter and the instance.
func (g *GPU) Close() {
	if g.Device != nil {
		g.Device.Release()
		g.Device = nil
	}
	if g.Adapter != nil {
		g.Adapter.Release()
		g.Adapter = nil
	}
	if g.Instance != nil {
		g.Instance.Release()
		g.Instance = nil
	}
}
