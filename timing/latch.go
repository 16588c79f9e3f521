package timing

import "sync"

// Latch elects a single governor per host frame to perform the frame-rate
// capping wait. When several recorders run at once only the first one to
// reach the latch in a given frame sleeps; the others observe the latch as
// taken and return immediately.
//
// Latch is safe for concurrent use.
type Latch struct {
	mu    sync.Mutex
	frame int64
	taken bool
}

// defaultLatch is shared by every Governor that does not set Config.Latch.
var defaultLatch Latch

// DefaultLatch returns the process-wide latch.
func DefaultLatch() *Latch { return &defaultLatch }

// TryAcquire reports whether the caller is the first to claim frame.
func (l *Latch) TryAcquire(frame int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.taken && l.frame == frame {
		return false
	}
	l.frame = frame
	l.taken = true
	return true
}

// Reset clears the latch.
func (l *Latch) Reset() {
	l.mu.Lock()
	l.taken = false
	l.frame = 0
	l.mu.Unlock()
}
