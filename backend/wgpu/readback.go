package wgpu

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	webgpu "github.com/gogpu/wgpu"

	"github.com/gogpu/recorder/internal/pixel"
	"github.com/gogpu/recorder/readback"
)

// CopyBytesPerRowAlignment is the WebGPU row pitch alignment for
// texture-to-buffer copies.
const CopyBytesPerRowAlignment = 256

// ErrNoDevice is returned when the backend is created without a device.
var ErrNoDevice = errors.New("wgpu: readback backend requires a device")

// Texture adapts a wgpu texture to readback.Texture. wgpu textures do not
// carry their size, so it is supplied alongside.
type Texture struct {
	Texture *webgpu.Texture
	W, H    int
}

// Width implements gpucontext.Texture.
func (t *Texture) Width() int { return t.W }

// Height implements gpucontext.Texture.
func (t *Texture) Height() int { return t.H }

// Format implements readback.Texture.
func (t *Texture) Format() gputypes.TextureFormat { return t.Texture.Format() }

// Backend performs asynchronous readback through wgpu staging buffers:
// copy the texture into a MapRead buffer, submit, MapAsync, then poll the
// map from Transfer.Status once per frame.
type Backend struct {
	device *webgpu.Device
	queue  *webgpu.Queue
	label  string
}

// NewBackend returns a readback backend on device.
func NewBackend(device *webgpu.Device, label string) (*Backend, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	if label == "" {
		label = "recorder_readback"
	}
	return &Backend{device: device, queue: device.Queue(), label: label}, nil
}

// Allocate implements readback.Backend. The staging buffer is created on
// first submit, when the row pitch is known.
func (b *Backend) Allocate(size int) (readback.Storage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("wgpu: invalid readback size %d", size)
	}
	return &storage{host: make([]byte, size)}, nil
}

// StagingLayout returns the padded row pitch and staging buffer size for a
// width x height texture. The size is rounded up to the 4-byte map
// alignment.
func StagingLayout(width, height int, format gputypes.TextureFormat) (stride, size int) {
	stride = pixel.AlignedRowBytes(width, format, CopyBytesPerRowAlignment)
	size = (stride*height + 3) &^ 3
	return stride, size
}

// Submit implements readback.Backend.
func (b *Backend) Submit(src readback.Texture, dst readback.Storage) (readback.Transfer, error) {
	tex, ok := src.(*Texture)
	if !ok || tex.Texture == nil {
		return nil, fmt.Errorf("%w: %T is not a wgpu texture", readback.ErrUnsupportedTexture, src)
	}
	st, ok := dst.(*storage)
	if !ok {
		return nil, fmt.Errorf("wgpu: storage %T was not allocated by this backend", dst)
	}
	format := tex.Format()
	w, h := tex.W, tex.H
	row := pixel.RowBytes(w, format)
	if row*h != len(st.host) {
		return nil, fmt.Errorf("%w: %dx%d %v needs %d bytes, storage holds %d",
			readback.ErrInvalidTexture, w, h, format, row*h, len(st.host))
	}
	stride, size := StagingLayout(w, h, format)

	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.ensureStaging(b, size); err != nil {
		return nil, err
	}

	enc, err := b.device.CreateCommandEncoder(&webgpu.CommandEncoderDescriptor{Label: b.label})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	enc.CopyTextureToBuffer(tex.Texture, st.staging, []webgpu.BufferTextureCopy{{
		BufferLayout: webgpu.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(stride),
			RowsPerImage: uint32(h),
		},
		TextureBase: webgpu.ImageCopyTexture{
			Texture:  tex.Texture,
			MipLevel: 0,
			Aspect:   gputypes.TextureAspectAll,
		},
		Size: webgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	}})
	cmd, err := enc.Finish()
	if err != nil {
		return nil, fmt.Errorf("wgpu: finish readback encoder: %w", err)
	}
	if _, err := b.queue.Submit(cmd); err != nil {
		return nil, fmt.Errorf("wgpu: submit readback: %w", err)
	}
	pending, err := st.staging.MapAsync(webgpu.MapModeRead, 0, uint64(size))
	if err != nil {
		return nil, fmt.Errorf("wgpu: map readback buffer: %w", err)
	}
	return &transfer{
		device:  b.device,
		st:      st,
		pending: pending,
		row:     row,
		stride:  stride,
		rows:    h,
		size:    size,
	}, nil
}

type storage struct {
	mu          sync.Mutex
	host        []byte
	staging     *webgpu.Buffer
	stagingSize int
}

// ensureStaging creates or resizes the staging buffer. Textures with the
// same tight size but different widths need different pitches.
func (s *storage) ensureStaging(b *Backend, size int) error {
	if s.staging != nil && s.stagingSize == size {
		return nil
	}
	if s.staging != nil {
		s.staging.Release()
		s.staging = nil
	}
	buf, err := b.device.CreateBuffer(&webgpu.BufferDescriptor{
		Label: b.label,
		Size:  uint64(size),
		Usage: webgpu.BufferUsageMapRead | webgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	s.staging = buf
	s.stagingSize = size
	slogger().Debug("wgpu: staging buffer created", "size", size)
	return nil
}

func (s *storage) Bytes() []byte { return s.host }
func (s *storage) Size() int     { return len(s.host) }

func (s *storage) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staging != nil {
		s.staging.Release()
		s.staging = nil
	}
	s.host = nil
}

type transfer struct {
	device  *webgpu.Device
	st      *storage
	pending *webgpu.MapPending
	row     int
	stride  int
	rows    int
	size    int

	done bool
	err  error
}

// Status polls the device without blocking and copies the mapped rows
// into host storage once the map resolves.
func (t *transfer) Status() (bool, error) {
	if t.done {
		return true, t.err
	}
	t.device.Poll(webgpu.PollPoll)
	ready, err := t.pending.Status()
	if !ready {
		return false, nil
	}
	t.finish(err)
	return true, t.err
}

// Wait blocks until the map resolves.
func (t *transfer) Wait(ctx context.Context) error {
	if t.done {
		return t.err
	}
	t.device.Poll(webgpu.PollWait)
	err := t.pending.Wait(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
		return err
	}
	t.finish(err)
	return t.err
}

func (t *transfer) finish(mapErr error) {
	t.done = true
	t.pending.Release()
	if mapErr != nil {
		t.err = fmt.Errorf("wgpu: readback map: %w", mapErr)
		return
	}
	t.st.mu.Lock()
	defer t.st.mu.Unlock()
	rng, err := t.st.staging.MappedRange(0, uint64(t.size))
	if err != nil {
		t.err = fmt.Errorf("wgpu: readback range: %w", err)
		_ = t.st.staging.Unmap()
		return
	}
	pixel.Unpad(t.st.host, rng.Bytes(), t.row, t.stride, t.rows)
	rng.Release()
	if err := t.st.staging.Unmap(); err != nil {
		t.err = fmt.Errorf("wgpu: readback unmap: %w", err)
	}
}
