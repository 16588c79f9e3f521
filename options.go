package recorder

import (
	"time"

	"github.com/gogpu/recorder/accumulation"
	"github.com/gogpu/recorder/readback"
)

// Option configures a Session during creation.
//
// Example:
//
//	s, err := recorder.NewSession(&settings,
//	    recorder.WithSource(src),
//	    recorder.WithPipeline(pipeline),
//	)
type Option func(*options)

// options holds optional configuration for Session creation.
type options struct {
	source     Source
	pipeline   accumulation.Pipeline
	backend    readback.Backend
	maxBuffers int
	shared     *Shared
	audio      AudioSource
	animation  AnimationSource
	strategy   Strategy
	project    string

	encodeWorkers int

	clock func() time.Time
	sleep func(time.Duration)
	spin  func(time.Time)
}

// defaultOptions returns the default session options.
func defaultOptions() options {
	return options{
		shared:  DefaultShared(),
		project: "recorder",
		clock:   time.Now,
	}
}

// WithSource sets the texture captured by video recorders.
func WithSource(src Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithPipeline sets the render pipeline used for sub-frame accumulation.
func WithPipeline(p accumulation.Pipeline) Option {
	return func(o *options) {
		o.pipeline = p
	}
}

// WithReadbackBackend sets the readback backend. CPU sources default to
// readback.CPUBackend; GPU sources need a backend such as the one in
// backend/wgpu.
func WithReadbackBackend(b readback.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithMaxReadbackBuffers caps the readback pool. Zero means unbounded.
func WithMaxReadbackBuffers(n int) Option {
	return func(o *options) {
		o.maxBuffers = n
	}
}

// WithShared sets the process context shared with other sessions.
// Defaults to DefaultShared().
func WithShared(s *Shared) Option {
	return func(o *options) {
		if s != nil {
			o.shared = s
		}
	}
}

// WithAudioSource sets the audio captured by audio and movie recorders.
func WithAudioSource(a AudioSource) Option {
	return func(o *options) {
		o.audio = a
	}
}

// WithAnimationSource sets the properties sampled by animation recorders.
func WithAnimationSource(a AnimationSource) Option {
	return func(o *options) {
		o.animation = a
	}
}

// WithEncodeWorkers lets image and AOV recorders write up to n files
// concurrently, off the host goroutine. Zero, the default, writes each
// file during RecordFrame.
func WithEncodeWorkers(n int) Option {
	return func(o *options) {
		o.encodeWorkers = max(n, 0)
	}
}

// WithStrategy replaces the strategy registered for the kind.
func WithStrategy(st Strategy) Option {
	return func(o *options) {
		o.strategy = st
	}
}

// WithProject sets the <Project> wildcard value.
func WithProject(name string) Option {
	return func(o *options) {
		o.project = name
	}
}

// WithClock injects the wall clock and the coarse sleep used for frame-rate
// capping. Nil values keep the defaults.
func WithClock(clock func() time.Time, sleep func(time.Duration)) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
		o.sleep = sleep
	}
}

// WithSpin injects the busy-wait used for the last part of a capping wait.
func WithSpin(spin func(deadline time.Time)) Option {
	return func(o *options) {
		o.spin = spin
	}
}
