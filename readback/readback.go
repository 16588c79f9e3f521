// Package readback provides a pool of reusable CPU-visible buffers for
// asynchronous GPU to CPU texture transfers.
//
// The pool never blocks the caller during normal operation. A transfer is
// submitted by RequestReadback and resolved by a later Poll, which invokes
// the completion callback on the polling goroutine. Requests complete
// independently of one another; the pool does not assume FIFO completion.
//
// Buffers are matched by exact byte size and are reused once their previous
// request has resolved and any dependent job registered against them has
// finished. The pool grows monotonically and never shrinks; Dispose waits
// for every outstanding transfer and job, then releases all storage.
package readback

import (
	"context"
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Pool errors.
var (
	// ErrPoolDisposed is returned when the pool is used after Dispose.
	ErrPoolDisposed = errors.New("readback: pool disposed")

	// ErrPoolExhausted is returned when a new buffer would exceed MaxBuffers.
	ErrPoolExhausted = errors.New("readback: pool exhausted")

	// ErrUnknownBuffer is returned when a buffer is not tracked by the pool.
	ErrUnknownBuffer = errors.New("readback: buffer not tracked by pool")

	// ErrInvalidTexture is returned for textures without a positive size
	// or with a format the pool cannot size.
	ErrInvalidTexture = errors.New("readback: invalid texture")

	// ErrUnsupportedTexture is returned by a backend for texture types it
	// cannot read.
	ErrUnsupportedTexture = errors.New("readback: unsupported texture")
)

// Texture is a readable texture with a known pixel format.
type Texture interface {
	gpucontext.Texture

	// Format returns the pixel format of the texture.
	Format() gputypes.TextureFormat
}

// Storage is a persistent CPU-visible block owned by a pool buffer.
type Storage interface {
	// Bytes returns the block contents. Valid until Release.
	Bytes() []byte

	// Size returns the block size in bytes.
	Size() int

	// Release frees the block.
	Release()
}

// Transfer is an in-flight copy from a texture into Storage.
type Transfer interface {
	// Status reports completion without blocking.
	Status() (done bool, err error)

	// Wait blocks until the transfer completes. Used only at teardown.
	Wait(ctx context.Context) error
}

// Backend allocates storage and submits transfers.
type Backend interface {
	Allocate(size int) (Storage, error)
	Submit(src Texture, dst Storage) (Transfer, error)
}

// Job is work that reads a buffer after its transfer, such as an
// asynchronous encode. A buffer with an unfinished job is not reused.
type Job interface {
	Done() bool
	Wait(ctx context.Context) error
}

// Result is delivered to a completion callback.
type Result struct {
	// Data holds the tightly packed pixels. It aliases the pool buffer and
	// is valid only until the callback returns; copy it to retain it.
	Data []byte

	Width  int
	Height int
	Format gputypes.TextureFormat

	// Buffer is the pool buffer that received the pixels.
	Buffer *Buffer

	// Err is set when the transfer failed. Data is nil in that case.
	Err error
}
