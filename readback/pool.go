package readback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/recorder/internal/pixel"
)

// Option configures a Pool.
type Option func(*options)

type options struct {
	maxBuffers int
	label      string
}

// WithMaxBuffers caps the number of buffers the pool may allocate.
// Zero means unbounded.
func WithMaxBuffers(n int) Option {
	return func(o *options) {
		o.maxBuffers = n
	}
}

// WithLabel names the pool in log records.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Buffers   int    // buffers currently tracked
	Bytes     uint64 // bytes held by tracked buffers
	InFlight  int    // unresolved requests
	Allocated uint64 // buffers ever allocated
	Reused    uint64 // requests served by an existing buffer
	Completed uint64 // requests resolved successfully
	Dropped   uint64 // requests resolved with an error
	Abandoned uint64 // buffers left unreleased by a canceled Dispose
}

// Pool is a growable set of readback buffers.
// It is safe for concurrent use; callbacks run without the lock held.
type Pool struct {
	mu       sync.Mutex
	backend  Backend
	opts     options
	buffers  []*Buffer
	inflight []*Request
	stats    Stats
	disposed bool
}

// NewPool creates an empty pool over backend.
func NewPool(backend Backend, opts ...Option) *Pool {
	o := options{label: "readback"}
	for _, opt := range opts {
		opt(&o)
	}
	return &Pool{backend: backend, opts: o}
}

// RequestReadback starts copying tex into a pool buffer. The buffer is one
// of the same byte size whose previous request has resolved and whose
// dependent job is done; otherwise a new buffer is allocated. onComplete,
// which may be nil, runs during a later Poll or Dispose.
func (p *Pool) RequestReadback(tex Texture, onComplete func(Result)) (*Request, error) {
	if tex == nil {
		return nil, fmt.Errorf("%w: nil texture", ErrInvalidTexture)
	}
	w, h, format := tex.Width(), tex.Height(), tex.Format()
	size := pixel.ImageBytes(w, h, format)
	if size <= 0 {
		return nil, fmt.Errorf("%w: %dx%d %v", ErrInvalidTexture, w, h, format)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return nil, ErrPoolDisposed
	}

	buf, reused, err := p.acquireLocked(size)
	if err != nil {
		return nil, err
	}

	transfer, err := p.backend.Submit(tex, buf.storage)
	if err != nil {
		slogger().Warn("readback: submit failed, frame dropped",
			"pool", p.opts.label, "buffer", buf.id, "err", err)
		p.stats.Dropped++
		return nil, fmt.Errorf("readback: submit: %w", err)
	}
	if reused {
		p.stats.Reused++
	}

	req := &Request{
		buf:        buf,
		transfer:   transfer,
		width:      w,
		height:     h,
		format:     format,
		onComplete: onComplete,
		done:       make(chan struct{}),
	}
	buf.pending = req
	buf.dep = nil
	buf.uses++
	p.inflight = append(p.inflight, req)
	return req, nil
}

// acquireLocked returns a free buffer of size and whether it existed before.
func (p *Pool) acquireLocked(size int) (*Buffer, bool, error) {
	for _, b := range p.buffers {
		if b.size == size && b.available() {
			return b, true, nil
		}
	}
	if p.opts.maxBuffers > 0 && len(p.buffers) >= p.opts.maxBuffers {
		return nil, false, fmt.Errorf("%w: %d buffers in use", ErrPoolExhausted, len(p.buffers))
	}
	storage, err := p.backend.Allocate(size)
	if err != nil {
		return nil, false, fmt.Errorf("readback: allocate %d bytes: %w", size, err)
	}
	b := &Buffer{id: len(p.buffers), size: size, storage: storage}
	p.buffers = append(p.buffers, b)
	p.stats.Allocated++
	slogger().Debug("readback: buffer allocated",
		"pool", p.opts.label, "buffer", b.id, "size", size, "buffers", len(p.buffers))
	return b, false, nil
}

// Poll resolves every request whose transfer has finished, in any order,
// and runs their callbacks on the calling goroutine. It returns the number
// of requests resolved.
func (p *Pool) Poll() int {
	p.mu.Lock()
	var ready []*Request
	kept := p.inflight[:0]
	for _, req := range p.inflight {
		done, err := req.transfer.Status()
		if !done && err == nil {
			kept = append(kept, req)
			continue
		}
		req.err = err
		ready = append(ready, req)
	}
	clear(p.inflight[len(kept):])
	p.inflight = kept
	p.mu.Unlock()

	for _, req := range ready {
		p.resolve(req)
	}
	return len(ready)
}

// resolve runs the callback and then frees the buffer for reuse.
func (p *Pool) resolve(req *Request) {
	res := Result{
		Width:  req.width,
		Height: req.height,
		Format: req.format,
		Buffer: req.buf,
		Err:    req.err,
	}
	if req.err == nil {
		res.Data = req.buf.storage.Bytes()[:req.buf.size]
	} else {
		slogger().Warn("readback: transfer failed, frame dropped",
			"pool", p.opts.label, "buffer", req.buf.id, "err", req.err)
	}
	if req.onComplete != nil {
		req.onComplete(res)
	}

	p.mu.Lock()
	if req.err == nil {
		p.stats.Completed++
	} else {
		p.stats.Dropped++
	}
	if req.buf.pending == req {
		req.buf.pending = nil
	}
	p.mu.Unlock()
	close(req.done)
}

// RegisterDependency marks buf as read by job. The buffer is not reused
// or released until job reports done. An untracked buffer is logged and
// rejected. Callbacks run by Dispose may still register; Dispose then waits
// for the job.
func (p *Pool) RegisterDependency(buf *Buffer, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed && p.buffers == nil {
		return ErrPoolDisposed
	}
	if buf == nil || buf.id < 0 || buf.id >= len(p.buffers) || p.buffers[buf.id] != buf {
		slogger().Error("readback: dependency registered on a buffer the pool does not track",
			"pool", p.opts.label)
		return ErrUnknownBuffer
	}
	buf.dep = job
	return nil
}

// Dispose waits for every in-flight transfer and dependent job, resolves
// the remaining callbacks and releases all storage. Later calls return nil.
//
// If ctx ends first, pending requests resolve with the context error and
// storage still targeted by a transfer or read by a job is left unreleased
// and logged; it is never handed back to the backend while in use.
func (p *Pool) Dispose(ctx context.Context) error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil
	}
	p.disposed = true
	pending := p.inflight
	p.inflight = nil
	p.mu.Unlock()

	var errs []error
	busy := make(map[*Buffer]bool)
	for _, req := range pending {
		if err := req.transfer.Wait(ctx); err != nil {
			req.err = err
			if ctx.Err() != nil {
				errs = append(errs, err)
				if done, serr := req.transfer.Status(); !done && serr == nil {
					busy[req.buf] = true
				}
			}
		}
		p.resolve(req)
	}

	p.mu.Lock()
	buffers := p.buffers
	p.buffers = nil
	p.mu.Unlock()

	var abandoned uint64
	for _, b := range buffers {
		if b.dep != nil {
			if err := b.dep.Wait(ctx); err != nil {
				errs = append(errs, fmt.Errorf("readback: buffer %d job: %w", b.id, err))
			}
			if !b.dep.Done() {
				busy[b] = true
			}
			b.dep = nil
		}
		if busy[b] {
			slogger().Error("readback: buffer still in use when dispose was canceled, storage not released",
				"pool", p.opts.label, "buffer", b.id, "size", b.size)
			abandoned++
			continue
		}
		b.storage.Release()
	}

	p.mu.Lock()
	p.stats.Abandoned += abandoned
	p.mu.Unlock()
	slogger().Debug("readback: pool disposed", "pool", p.opts.label,
		"buffers", len(buffers), "abandoned", abandoned)
	return errors.Join(errs...)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Buffers = len(p.buffers)
	s.InFlight = len(p.inflight)
	for _, b := range p.buffers {
		s.Bytes += uint64(b.size)
	}
	return s
}

// Len returns the number of tracked buffers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffers)
}

// Disposed reports whether Dispose has been called.
func (p *Pool) Disposed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disposed
}
