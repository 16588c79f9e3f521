package recorder

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

// recordingHost counts capture frame rate changes.
type recordingHost struct {
	mu     sync.Mutex
	sets   []float64
	resets int
}

func (h *recordingHost) SetCaptureFrameRate(fps float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sets = append(h.sets, fps)
}

func (h *recordingHost) ResetCaptureFrameRate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resets++
}

func TestSharedFrameRateRefCount(t *testing.T) {
	host := &recordingHost{}
	s := NewShared(host)

	s.AcquireFrameRate(30)
	s.AcquireFrameRate(30)
	s.AcquireFrameRate(60)
	if fps, refs := s.FrameRate(); fps != 30 || refs != 3 {
		t.Fatalf("FrameRate() = %v, %d, want 30, 3", fps, refs)
	}
	if len(host.sets) != 1 || host.sets[0] != 30 {
		t.Errorf("host rates = %v, want [30]", host.sets)
	}

	s.ReleaseFrameRate()
	s.ReleaseFrameRate()
	if host.resets != 0 {
		t.Error("host reset before the last release")
	}
	s.ReleaseFrameRate()
	if host.resets != 1 {
		t.Errorf("host resets = %d, want 1", host.resets)
	}
	if fps, refs := s.FrameRate(); fps != 0 || refs != 0 {
		t.Errorf("FrameRate() after release = %v, %d", fps, refs)
	}

	// Unbalanced releases are ignored.
	s.ReleaseFrameRate()
	if host.resets != 1 {
		t.Errorf("host resets = %d after unbalanced release, want 1", host.resets)
	}
}

func TestSharedMovieSlot(t *testing.T) {
	s := NewShared(nil)
	if !s.AcquireMovie() {
		t.Error("first movie did not get the audio slot")
	}
	if s.AcquireMovie() {
		t.Error("second movie got the audio slot")
	}
	s.ReleaseMovie()
	s.ReleaseMovie()
	s.ReleaseMovie()
	if got := s.Movies(); got != 0 {
		t.Errorf("Movies() = %d, want 0", got)
	}
	if !s.AcquireMovie() {
		t.Error("slot not free again after release")
	}
}

func TestSharedSetHostAndConcurrency(t *testing.T) {
	s := NewShared(nil)
	host := &recordingHost{}
	s.SetHost(host)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AcquireFrameRate(24)
			s.ReleaseFrameRate()
		}()
	}
	wg.Wait()
	if _, refs := s.FrameRate(); refs != 0 {
		t.Errorf("refs = %d, want 0", refs)
	}
	if len(host.sets) != host.resets {
		t.Errorf("sets %d != resets %d", len(host.sets), host.resets)
	}
}

func TestSharedLatches(t *testing.T) {
	if DefaultShared() != DefaultShared() {
		t.Error("DefaultShared() is not a singleton")
	}
	a, b := NewShared(nil), NewShared(nil)
	if a.Latch() == b.Latch() {
		t.Error("independent contexts share a latch")
	}
	if !a.Latch().TryAcquire(1) || a.Latch().TryAcquire(1) {
		t.Error("latch does not elect a single winner per frame")
	}
	if !b.Latch().TryAcquire(1) {
		t.Error("latch of another context was taken")
	}
}

func TestSharedHostFrames(t *testing.T) {
	s := NewShared(nil)
	a, b := uuid.New(), uuid.New()

	steps := []struct {
		name  string
		enter uuid.UUID
		begin bool
		want  int64
	}{
		{"a opens frame 0", a, false, 0},
		{"b joins frame 0", b, false, 0},
		{"a again starts frame 1", a, false, 1},
		{"b joins frame 1", b, false, 1},
		{"explicit frame", uuid.Nil, true, 2},
		{"b first in frame 2", b, false, 2},
		{"a joins frame 2", a, false, 2},
	}
	for _, st := range steps {
		var got int64
		if st.begin {
			got = s.BeginHostFrame()
		} else {
			got = s.enterFrame(st.enter)
		}
		if got != st.want {
			t.Errorf("%s: frame = %d, want %d", st.name, got, st.want)
		}
	}

	s.leaveFrame(a)
	if got := s.enterFrame(a); got != 2 {
		t.Errorf("a after leaving: frame = %d, want 2", got)
	}
	if got := s.HostFrame(); got != 2 {
		t.Errorf("HostFrame() = %d, want 2", got)
	}
}
