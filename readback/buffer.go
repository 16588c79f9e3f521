package readback

import "github.com/gogpu/gputypes"

// Buffer is one pooled readback block.
type Buffer struct {
	id      int
	size    int
	storage Storage
	pending *Request
	dep     Job
	uses    int
}

// ID returns the buffer index within its pool.
func (b *Buffer) ID() int { return b.id }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int { return b.size }

// Uses returns how many transfers have targeted the buffer.
func (b *Buffer) Uses() int { return b.uses }

func (b *Buffer) available() bool {
	return b.pending == nil && (b.dep == nil || b.dep.Done())
}

// Request is a pending readback. It resolves during Pool.Poll or
// Pool.Dispose.
type Request struct {
	buf        *Buffer
	transfer   Transfer
	width      int
	height     int
	format     gputypes.TextureFormat
	onComplete func(Result)
	done       chan struct{}
	err        error
}

// Done is closed once the request has resolved and its callback returned.
func (r *Request) Done() <-chan struct{} { return r.done }

// Err returns the transfer error after Done is closed.
func (r *Request) Err() error { return r.err }

// Buffer returns the pool buffer targeted by the request.
func (r *Request) Buffer() *Buffer { return r.buf }
