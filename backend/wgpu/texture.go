package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	webgpu "github.com/gogpu/wgpu"

	"github.com/gogpu/recorder/internal/pixel"
)

// NewCaptureTexture creates a 2D texture that can be rendered or uploaded
// to and read back.
func NewCaptureTexture(device *webgpu.Device, width, height int, format gputypes.TextureFormat, label string) (*Texture, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	if width <= 0 || height <= 0 || !pixel.Supported(format) {
		return nil, fmt.Errorf("wgpu: cannot capture %dx%d %v", width, height, format)
	}
	tex, err := device.CreateTexture(&webgpu.TextureDescriptor{
		Label: label,
		Size: webgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     webgpu.TextureDimension2D,
		Format:        format,
		Usage: webgpu.TextureUsageCopySrc | webgpu.TextureUsageCopyDst |
			webgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create capture texture: %w", err)
	}
	return &Texture{Texture: tex, W: width, H: height}, nil
}

// Upload writes tightly packed pixels into the texture.
func (t *Texture) Upload(queue *webgpu.Queue, pixels []byte) error {
	format := t.Format()
	rowBytes := pixel.RowBytes(t.W, format)
	if want := rowBytes * t.H; len(pixels) < want {
		return fmt.Errorf("wgpu: upload of %d bytes, texture needs %d", len(pixels), want)
	}
	return queue.WriteTexture(
		&webgpu.ImageCopyTexture{
			Texture: t.Texture,
			Aspect:  gputypes.TextureAspectAll,
		},
		pixels,
		&webgpu.ImageDataLayout{
			BytesPerRow:  uint32(rowBytes),
			RowsPerImage: uint32(t.H),
		},
		&webgpu.Extent3D{Width: uint32(t.W), Height: uint32(t.H), DepthOrArrayLayers: 1},
	)
}

// Release frees the texture.
func (t *Texture) Release() {
	if t.Texture != nil {
		t.Texture.Release()
		t.Texture = nil
	}
}
