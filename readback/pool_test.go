package readback

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
)

// manualTransfer completes when the test says so. A held transfer never
// completes on Wait and only gives up when the context ends.
type manualTransfer struct {
	done  atomic.Bool
	hold  bool
	err   error
	waits atomic.Int32
}

func (t *manualTransfer) Status() (bool, error) {
	if !t.done.Load() {
		return false, nil
	}
	return true, t.err
}

func (t *manualTransfer) Wait(ctx context.Context) error {
	t.waits.Add(1)
	if t.hold {
		<-ctx.Done()
		return ctx.Err()
	}
	t.done.Store(true)
	return t.err
}

type manualBackend struct {
	cpu       CPUBackend
	transfers []*manualTransfer
	released  int
	submitErr error
}

func (b *manualBackend) Allocate(size int) (Storage, error) {
	s, err := b.cpu.Allocate(size)
	if err != nil {
		return nil, err
	}
	return &countingStorage{Storage: s, b: b}, nil
}

func (b *manualBackend) Submit(src Texture, dst Storage) (Transfer, error) {
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	if _, err := b.cpu.Submit(src, dst); err != nil {
		return nil, err
	}
	t := &manualTransfer{}
	b.transfers = append(b.transfers, t)
	return t, nil
}

type countingStorage struct {
	Storage
	b *manualBackend
}

func (s *countingStorage) Release() {
	s.b.released++
	s.Storage.Release()
}

// delayedJob finishes after a fixed delay once Wait is called, or when
// finished explicitly.
type delayedJob struct {
	done  atomic.Bool
	delay time.Duration
}

func (j *delayedJob) Done() bool { return j.done.Load() }

func (j *delayedJob) Wait(ctx context.Context) error {
	select {
	case <-time.After(j.delay):
		j.done.Store(true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func rgba(w, h int, fill byte) *Image {
	img := NewImage(w, h, gputypes.TextureFormatRGBA8Unorm)
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	return img
}

func TestPoolReusesSameSizeAfterCompletion(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)

	var got []byte
	req, err := p.RequestReadback(rgba(4, 4, 7), func(r Result) {
		if r.Err != nil {
			t.Errorf("unexpected error: %v", r.Err)
		}
		got = append([]byte(nil), r.Data...)
	})
	if err != nil {
		t.Fatal(err)
	}
	b.transfers[0].done.Store(true)
	if n := p.Poll(); n != 1 {
		t.Fatalf("Poll() = %d, want 1", n)
	}
	select {
	case <-req.Done():
	default:
		t.Fatal("request not done after Poll")
	}
	if len(got) != 64 || got[0] != 7 {
		t.Fatalf("callback data = %d bytes, first %v", len(got), got)
	}

	req2, err := p.RequestReadback(rgba(4, 4, 9), nil)
	if err != nil {
		t.Fatal(err)
	}
	if req2.Buffer() != req.Buffer() {
		t.Error("same-size request did not reuse the completed buffer")
	}
	s := p.Stats()
	if s.Buffers != 1 || s.Allocated != 1 || s.Reused != 1 || s.InFlight != 1 || s.Bytes != 64 {
		t.Errorf("stats = %+v", s)
	}
	if req.Buffer().Uses() != 2 {
		t.Errorf("buffer uses = %d, want 2", req.Buffer().Uses())
	}
}

func TestPoolAllocatesForDifferentSize(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)
	r1, _ := p.RequestReadback(rgba(4, 4, 0), nil)
	b.transfers[0].done.Store(true)
	p.Poll()
	r2, err := p.RequestReadback(rgba(8, 8, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Buffer() == r2.Buffer() {
		t.Error("different-size request reused a buffer")
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
}

func TestPoolAllocatesWhileInFlight(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)
	r1, _ := p.RequestReadback(rgba(2, 2, 0), nil)
	r2, _ := p.RequestReadback(rgba(2, 2, 0), nil)
	if r1.Buffer() == r2.Buffer() {
		t.Fatal("in-flight buffer was handed out twice")
	}
}

func TestPoolCompletesOutOfOrder(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		if _, err := p.RequestReadback(rgba(2, 2, byte(i)), func(r Result) {
			order = append(order, int(r.Data[0]))
		}); err != nil {
			t.Fatal(err)
		}
	}
	b.transfers[2].done.Store(true)
	p.Poll()
	b.transfers[0].done.Store(true)
	p.Poll()
	if len(order) != 2 || order[0] != 2 || order[1] != 0 {
		t.Fatalf("completion order = %v, want [2 0]", order)
	}
	if s := p.Stats(); s.InFlight != 1 {
		t.Errorf("in flight = %d, want 1", s.InFlight)
	}
}

func TestPoolErrorDropsFrameAndFreesBuffer(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)
	var gotErr error
	var gotData []byte
	r1, _ := p.RequestReadback(rgba(2, 2, 1), func(r Result) {
		gotErr = r.Err
		gotData = r.Data
	})
	b.transfers[0].err = errors.New("device lost")
	b.transfers[0].done.Store(true)
	p.Poll()
	if gotErr == nil || gotData != nil {
		t.Fatalf("callback err=%v data=%v", gotErr, gotData)
	}
	if !errors.Is(r1.Err(), gotErr) {
		t.Errorf("request Err() = %v", r1.Err())
	}
	r2, err := p.RequestReadback(rgba(2, 2, 1), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r2.Buffer() != r1.Buffer() {
		t.Error("buffer not reusable after a failed transfer")
	}
	if s := p.Stats(); s.Dropped != 1 || s.Completed != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPoolSubmitError(t *testing.T) {
	b := &manualBackend{submitErr: errors.New("queue full")}
	p := NewPool(b)
	if _, err := p.RequestReadback(rgba(2, 2, 0), nil); err == nil {
		t.Fatal("expected submit error")
	}
	b.submitErr = nil
	if _, err := p.RequestReadback(rgba(2, 2, 0), nil); err != nil {
		t.Fatal(err)
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (buffer reused after failed submit)", p.Len())
	}
}

func TestPoolDependencyBlocksReuse(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)
	r1, _ := p.RequestReadback(rgba(2, 2, 0), nil)
	b.transfers[0].done.Store(true)
	p.Poll()

	job := &delayedJob{}
	if err := p.RegisterDependency(r1.Buffer(), job); err != nil {
		t.Fatal(err)
	}
	r2, _ := p.RequestReadback(rgba(2, 2, 0), nil)
	if r2.Buffer() == r1.Buffer() {
		t.Fatal("buffer reused while its job was running")
	}
	b.transfers[1].done.Store(true)
	p.Poll()

	job.done.Store(true)
	r3, _ := p.RequestReadback(rgba(2, 2, 0), nil)
	if r3.Buffer() != r1.Buffer() {
		t.Error("buffer not reused after its job finished")
	}
}

func TestPoolRegisterDependencyUnknownBuffer(t *testing.T) {
	p := NewPool(&manualBackend{})
	other := NewPool(&manualBackend{})
	r, _ := other.RequestReadback(rgba(2, 2, 0), nil)

	tests := []struct {
		name string
		buf  *Buffer
	}{
		{"nil", nil},
		{"foreign", r.Buffer()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.RegisterDependency(tt.buf, &delayedJob{}); !errors.Is(err, ErrUnknownBuffer) {
				t.Errorf("RegisterDependency() = %v, want ErrUnknownBuffer", err)
			}
		})
	}
	if p.Len() != 0 {
		t.Error("unknown buffer was added to the pool")
	}
}

func TestPoolDisposeWaitsForJobs(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)
	r, _ := p.RequestReadback(rgba(2, 2, 0), nil)
	b.transfers[0].done.Store(true)
	p.Poll()
	job := &delayedJob{delay: 20 * time.Millisecond}
	_ = p.RegisterDependency(r.Buffer(), job)

	start := time.Now()
	if err := p.Dispose(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !job.Done() {
		t.Error("Dispose returned before the dependent job finished")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Dispose did not block on the job")
	}
	if b.released != 1 {
		t.Errorf("released %d storages, want 1", b.released)
	}
}

func TestPoolDisposeWaitsForJobFromCallback(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)
	job := &delayedJob{delay: 20 * time.Millisecond}
	var regErr error
	_, err := p.RequestReadback(rgba(2, 2, 0), func(r Result) {
		regErr = p.RegisterDependency(r.Buffer, job)
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Dispose(context.Background()); err != nil {
		t.Fatal(err)
	}
	if regErr != nil {
		t.Fatalf("RegisterDependency during Dispose = %v", regErr)
	}
	if !job.Done() {
		t.Error("Dispose released storage before the job finished")
	}
	if b.released != 1 {
		t.Errorf("released %d storages, want 1", b.released)
	}
	if err := p.RegisterDependency(&Buffer{}, job); !errors.Is(err, ErrPoolDisposed) {
		t.Errorf("RegisterDependency after Dispose = %v, want ErrPoolDisposed", err)
	}
}

func TestPoolDisposeResolvesInFlight(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)
	called := 0
	req, _ := p.RequestReadback(rgba(2, 2, 0), func(Result) { called++ })

	if err := p.Dispose(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.transfers[0].waits.Load() != 1 {
		t.Error("Dispose did not wait on the in-flight transfer")
	}
	if called != 1 {
		t.Errorf("callback ran %d times, want 1", called)
	}
	<-req.Done()

	if err := p.Dispose(context.Background()); err != nil {
		t.Errorf("second Dispose() = %v", err)
	}
	if called != 1 || b.released != 1 {
		t.Error("second Dispose repeated work")
	}
	if _, err := p.RequestReadback(rgba(2, 2, 0), nil); !errors.Is(err, ErrPoolDisposed) {
		t.Errorf("RequestReadback after Dispose = %v, want ErrPoolDisposed", err)
	}
}

func TestPoolDisposeContextCanceled(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)
	r, _ := p.RequestReadback(rgba(2, 2, 0), nil)
	b.transfers[0].done.Store(true)
	p.Poll()
	job := &delayedJob{delay: time.Hour}
	_ = p.RegisterDependency(r.Buffer(), job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Dispose(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Dispose() = %v, want context.Canceled", err)
	}
	if job.Done() {
		t.Fatal("job finished despite the canceled context")
	}
	if b.released != 0 {
		t.Errorf("released %d storages still read by a job, want 0", b.released)
	}
	if s := p.Stats(); s.Abandoned != 1 {
		t.Errorf("Stats().Abandoned = %d, want 1", s.Abandoned)
	}
}

func TestPoolDisposeCanceledKeepsTransferStorage(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)

	// A finished readback leaves one free buffer.
	if _, err := p.RequestReadback(rgba(1, 1, 0), nil); err != nil {
		t.Fatal(err)
	}
	b.transfers[0].done.Store(true)
	p.Poll()

	var got Result
	req, err := p.RequestReadback(rgba(2, 2, 0), func(r Result) { got = r })
	if err != nil {
		t.Fatal(err)
	}
	b.transfers[1].hold = true

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Dispose(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dispose() = %v, want context.DeadlineExceeded", err)
	}
	<-req.Done()
	if !errors.Is(got.Err, context.DeadlineExceeded) || got.Data != nil {
		t.Errorf("callback got err %v with %d bytes, want the context error and no data", got.Err, len(got.Data))
	}
	if b.released != 1 {
		t.Errorf("released %d storages, want only the idle one", b.released)
	}
	if s := p.Stats(); s.Abandoned != 1 || s.Dropped != 1 {
		t.Errorf("Stats() abandoned %d dropped %d, want 1 and 1", s.Abandoned, s.Dropped)
	}
}

func TestPoolReusedCountsOnlySubmitted(t *testing.T) {
	b := &manualBackend{}
	p := NewPool(b)
	if _, err := p.RequestReadback(rgba(2, 2, 0), nil); err != nil {
		t.Fatal(err)
	}
	b.transfers[0].done.Store(true)
	p.Poll()

	b.submitErr = errors.New("device lost")
	if _, err := p.RequestReadback(rgba(2, 2, 0), nil); err == nil {
		t.Fatal("expected submit error")
	}
	if s := p.Stats(); s.Reused != 0 || s.Dropped != 1 {
		t.Errorf("after failed submit: reused %d dropped %d, want 0 and 1", s.Reused, s.Dropped)
	}

	b.submitErr = nil
	if _, err := p.RequestReadback(rgba(2, 2, 0), nil); err != nil {
		t.Fatal(err)
	}
	if s := p.Stats(); s.Reused != 1 || s.Allocated != 1 {
		t.Errorf("after retry: reused %d allocated %d, want 1 and 1", s.Reused, s.Allocated)
	}
}

func TestPoolMaxBuffers(t *testing.T) {
	p := NewPool(&manualBackend{}, WithMaxBuffers(1), WithLabel("test"))
	if _, err := p.RequestReadback(rgba(2, 2, 0), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := p.RequestReadback(rgba(2, 2, 0), nil); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("second request = %v, want ErrPoolExhausted", err)
	}
}

func TestPoolInvalidTexture(t *testing.T) {
	p := NewPool(&CPUBackend{})
	tests := []struct {
		name string
		tex  Texture
	}{
		{"nil", nil},
		{"empty", &Image{W: 0, H: 4, Fmt: gputypes.TextureFormatRGBA8Unorm}},
		{"depth format", &Image{W: 4, H: 4, Fmt: gputypes.TextureFormatDepth32Float}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.RequestReadback(tt.tex, nil); !errors.Is(err, ErrInvalidTexture) {
				t.Errorf("RequestReadback() = %v, want ErrInvalidTexture", err)
			}
		})
	}
}

func TestCPUBackendLatency(t *testing.T) {
	p := NewPool(&CPUBackend{Latency: 2})
	img := rgba(2, 2, 5)
	var data []byte
	_, err := p.RequestReadback(img, func(r Result) { data = append([]byte(nil), r.Data...) })
	if err != nil {
		t.Fatal(err)
	}
	img.Pix[0] = 99 // the copy was taken at submit time

	for i := 0; i < 2; i++ {
		if n := p.Poll(); n != 0 {
			t.Fatalf("poll %d resolved early", i)
		}
	}
	if n := p.Poll(); n != 1 {
		t.Fatal("request not resolved after latency")
	}
	if data[0] != 5 {
		t.Errorf("data[0] = %d, want 5", data[0])
	}
}

type opaqueTexture struct{}

func (opaqueTexture) Width() int                     { return 2 }
func (opaqueTexture) Height() int                    { return 2 }
func (opaqueTexture) Format() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }

func TestCPUBackendRejectsOpaqueTexture(t *testing.T) {
	p := NewPool(&CPUBackend{})
	if _, err := p.RequestReadback(opaqueTexture{}, nil); !errors.Is(err, ErrUnsupportedTexture) {
		t.Errorf("RequestReadback() = %v, want ErrUnsupportedTexture", err)
	}
}
