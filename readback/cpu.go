package readback

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/recorder/internal/pixel"
)

// PixelSource is a CPU-side texture whose pixels can be copied directly.
type PixelSource interface {
	Texture

	// Pixels returns tightly packed pixel rows in Format.
	Pixels() []byte
}

// Image is an in-memory PixelSource.
type Image struct {
	W, H int
	Fmt  gputypes.TextureFormat
	Pix  []byte
}

// NewImage allocates a zeroed image.
func NewImage(width, height int, format gputypes.TextureFormat) *Image {
	return &Image{
		W:   width,
		H:   height,
		Fmt: format,
		Pix: make([]byte, pixel.ImageBytes(width, height, format)),
	}
}

// Width implements gpucontext.Texture.
func (i *Image) Width() int { return i.W }

// Height implements gpucontext.Texture.
func (i *Image) Height() int { return i.H }

// Format implements Texture.
func (i *Image) Format() gputypes.TextureFormat { return i.Fmt }

// Pixels implements PixelSource.
func (i *Image) Pixels() []byte { return i.Pix }

// CPUBackend reads PixelSource textures. The copy happens at submit time;
// Latency delays the reported completion by that many Status calls, which
// models a transfer that finishes a few frames later.
type CPUBackend struct {
	Latency int
}

// Allocate implements Backend.
func (b *CPUBackend) Allocate(size int) (Storage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("readback: invalid allocation size %d", size)
	}
	return &cpuStorage{data: make([]byte, size)}, nil
}

// Submit implements Backend.
func (b *CPUBackend) Submit(src Texture, dst Storage) (Transfer, error) {
	ps, ok := src.(PixelSource)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a pixel source", ErrUnsupportedTexture, src)
	}
	pix := ps.Pixels()
	out := dst.Bytes()
	if len(pix) < len(out) {
		return nil, fmt.Errorf("%w: source holds %d bytes, need %d", pixel.ErrShortBuffer, len(pix), len(out))
	}
	copy(out, pix)
	return &cpuTransfer{remaining: b.Latency}, nil
}

type cpuStorage struct {
	data []byte
}

func (s *cpuStorage) Bytes() []byte { return s.data }
func (s *cpuStorage) Size() int     { return len(s.data) }
func (s *cpuStorage) Release()      { s.data = nil }

type cpuTransfer struct {
	mu        sync.Mutex
	remaining int
}

func (t *cpuTransfer) Status() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remaining > 0 {
		t.remaining--
		return false, nil
	}
	return true, nil
}

func (t *cpuTransfer) Wait(ctx context.Context) error {
	t.mu.Lock()
	t.remaining = 0
	t.mu.Unlock()
	return ctx.Err()
}
