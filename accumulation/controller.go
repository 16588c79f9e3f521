package accumulation

import (
	"context"
	"errors"
	"fmt"
)

// ErrPipeline wraps failures reported by the render pipeline.
var ErrPipeline = errors.New("accumulation: pipeline")

// Camera is a view whose projection the controller jitters.
type Camera interface {
	Projection() Matrix4
	SetProjection(Matrix4)
	Size() (width, height int)
}

// Pipeline is the render pipeline that renders and blends sub-frames.
type Pipeline interface {
	// SupportsAccumulation reports whether the pipeline can blend sub-frames.
	SupportsAccumulation() bool

	// BeginAccumulation prepares blending of samples sub-frames per frame
	// with the given per-sample weights.
	BeginAccumulation(ctx context.Context, samples int, weights []float64) error

	// EndAccumulation releases whatever BeginAccumulation set up.
	EndAccumulation()

	// Cameras returns the views rendered for the recorded output.
	Cameras() []Camera
}

// State is the controller state.
type State uint8

const (
	// Inactive: nothing is applied to the pipeline.
	Inactive State = iota

	// Active: the pipeline accumulates and sub-frames may be jittered.
	Active
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case Active:
		return "Active"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

type override struct {
	cam      Camera
	original Matrix4
}

// Controller drives sub-frame accumulation on a Pipeline for one session.
// It is not safe for concurrent use.
type Controller struct {
	settings Settings
	pipeline Pipeline
	table    JitterTable

	state    State
	samples  int
	next     int
	subFrame int
	applied  []override
}

// NewController validates settings and returns an inactive controller.
// pipeline may be nil when accumulation is disabled.
func NewController(settings Settings, pipeline Pipeline) (*Controller, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Controller{settings: settings, pipeline: pipeline, samples: 1}, nil
}

// Begin activates the controller when accumulation is enabled and the
// pipeline supports it. An unsupported pipeline leaves it Inactive.
func (c *Controller) Begin(ctx context.Context) error {
	if c.state == Active || !c.settings.Enabled() {
		return nil
	}
	if c.pipeline == nil || !c.pipeline.SupportsAccumulation() {
		slogger().Warn("accumulation: pipeline does not support accumulation, sub-frames disabled")
		return nil
	}
	n := c.settings.Samples
	if err := c.pipeline.BeginAccumulation(ctx, n, c.settings.Weights()); err != nil {
		return fmt.Errorf("%w: begin: %w", ErrPipeline, err)
	}
	if c.settings.SubPixelJitter {
		c.table.Offsets(n)
	}
	c.samples = n
	c.next = 0
	c.subFrame = 0
	c.state = Active
	slogger().Debug("accumulation: begin", "samples", n,
		"effective", c.settings.EffectiveSamples(), "jitter", c.settings.SubPixelJitter)
	return nil
}

// BeginSubFrame advances the sub-frame index, wrapping at the sample count,
// and applies the jittered projection to every camera. It returns the
// offset and whether one was applied.
func (c *Controller) BeginSubFrame() (Offset, bool) {
	if c.state != Active {
		return Offset{}, false
	}
	// A sub-frame whose completion was never observed is reverted here so
	// offsets never stack.
	c.revert()

	c.subFrame = c.next
	c.next = (c.next + 1) % c.samples
	if !c.settings.SubPixelJitter {
		return Offset{}, false
	}
	off := c.table.At(c.subFrame, c.samples)
	for _, cam := range c.pipeline.Cameras() {
		w, h := cam.Size()
		orig := cam.Projection()
		cam.SetProjection(orig.Jitter(off, w, h))
		c.applied = append(c.applied, override{cam: cam, original: orig})
	}
	return off, true
}

// EndSubFrame reverts the projections applied by BeginSubFrame.
func (c *Controller) EndSubFrame() {
	c.revert()
}

// End reverts any outstanding override and releases the pipeline. It is
// safe to call in any state, including between BeginSubFrame and
// EndSubFrame.
func (c *Controller) End() {
	c.revert()
	if c.state == Active {
		c.pipeline.EndAccumulation()
		slogger().Debug("accumulation: end")
	}
	c.state = Inactive
	c.next = 0
	c.subFrame = 0
}

func (c *Controller) revert() {
	for i := len(c.applied) - 1; i >= 0; i-- {
		o := c.applied[i]
		o.cam.SetProjection(o.original)
	}
	c.applied = c.applied[:0]
}

// State returns the controller state.
func (c *Controller) State() State { return c.state }

// Active reports whether sub-frames are being accumulated.
func (c *Controller) Active() bool { return c.state == Active }

// SubFrameIndex returns the index of the current sub-frame within its frame.
func (c *Controller) SubFrameIndex() int { return c.subFrame }

// Samples returns the number of sub-frames per recorded frame, 1 when inactive.
func (c *Controller) Samples() int {
	if c.state != Active {
		return 1
	}
	return c.samples
}

// Settings returns the controller settings.
func (c *Controller) Settings() Settings { return c.settings }

// Outstanding reports whether a jittered projection is currently applied.
func (c *Controller) Outstanding() bool { return len(c.applied) > 0 }
