package recorder

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/recorder/timing"
)

// Host is the engine side of the process-wide capture settings.
type Host interface {
	// SetCaptureFrameRate fixes the host time step to 1/fps.
	SetCaptureFrameRate(fps float64)

	// ResetCaptureFrameRate restores free-running time.
	ResetCaptureFrameRate()
}

// Shared holds state that concurrently recording sessions have in common:
// the host's fixed capture frame rate, the number of movie recorders (only
// the first records audio), the host frame counter and the frame-rate
// capping latch.
//
// Shared is safe for concurrent use.
type Shared struct {
	mu        sync.Mutex
	host      Host
	latch     *timing.Latch
	rateRefs  int
	rate      float64
	movieRefs int

	// frame is the current host frame; entered holds the sessions that
	// prepared a frame in it.
	frame   int64
	entered map[uuid.UUID]struct{}
}

var defaultShared = &Shared{latch: timing.DefaultLatch()}

// DefaultShared returns the process-wide context. It has no Host until
// SetHost is called.
func DefaultShared() *Shared { return defaultShared }

// NewShared returns an independent context driving host, which may be nil.
func NewShared(host Host) *Shared {
	return &Shared{host: host, latch: new(timing.Latch)}
}

// SetHost replaces the host.
func (s *Shared) SetHost(h Host) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = h
}

// Latch returns the capping latch shared by the sessions.
func (s *Shared) Latch() *timing.Latch { return s.latch }

// BeginHostFrame starts a new host frame and returns its number. Hosts
// driving several sessions may call it once per frame before preparing
// them. Without it a new host frame starts whenever a session prepares a
// second frame within the current one.
func (s *Shared) BeginHostFrame() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked()
}

// HostFrame returns the current host frame number.
func (s *Shared) HostFrame() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *Shared) advanceLocked() int64 {
	s.frame++
	clear(s.entered)
	return s.frame
}

// enterFrame records that session id prepares a frame and returns the host
// frame it belongs to. All sessions prepared in one host frame share the
// number, which keys the capping latch.
func (s *Shared) enterFrame(id uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entered == nil {
		s.entered = make(map[uuid.UUID]struct{})
	}
	if _, ok := s.entered[id]; ok {
		s.advanceLocked()
	}
	s.entered[id] = struct{}{}
	return s.frame
}

// leaveFrame forgets session id.
func (s *Shared) leaveFrame(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entered, id)
}

// AcquireFrameRate takes a reference on the fixed capture frame rate. The
// first reference sets the host rate; later references with a different
// rate keep the first one.
func (s *Shared) AcquireFrameRate(fps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateRefs++
	if s.rateRefs == 1 {
		s.rate = fps
		if s.host != nil {
			s.host.SetCaptureFrameRate(fps)
		}
		return
	}
	if math.Abs(s.rate-fps) > 1e-9 {
		slogger().Warn("recorder: concurrent recorders request different frame rates, keeping the first",
			"active", s.rate, "requested", fps)
	}
}

// ReleaseFrameRate drops a reference. The host rate is reset only when the
// last reference is released.
func (s *Shared) ReleaseFrameRate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rateRefs == 0 {
		slogger().Error("recorder: capture frame rate released more often than acquired")
		return
	}
	s.rateRefs--
	if s.rateRefs == 0 {
		s.rate = 0
		if s.host != nil {
			s.host.ResetCaptureFrameRate()
		}
	}
}

// FrameRate returns the fixed capture frame rate and its reference count.
func (s *Shared) FrameRate() (fps float64, refs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate, s.rateRefs
}

// AcquireMovie registers an active movie recorder and reports whether it is
// the first, which is the only one allowed to record audio.
func (s *Shared) AcquireMovie() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movieRefs++
	return s.movieRefs == 1
}

// ReleaseMovie unregisters a movie recorder.
func (s *Shared) ReleaseMovie() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.movieRefs > 0 {
		s.movieRefs--
	}
}

// Movies returns the number of active movie recorders.
func (s *Shared) Movies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.movieRefs
}
