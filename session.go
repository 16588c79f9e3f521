package recorder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gogpu/gputypes"
	"github.com/google/uuid"

	"github.com/gogpu/recorder/accumulation"
	"github.com/gogpu/recorder/encoder"
	"github.com/gogpu/recorder/readback"
	"github.com/gogpu/recorder/schedule"
	"github.com/gogpu/recorder/timing"
)

// Session records one take of one recorder.
//
// The host drives a session from its frame loop: PrepareNewFrame at the
// start of every host frame, RecordFrame after the frame has been rendered
// and EndRecording when done. A session is not safe for concurrent use.
//
//	s, _ := recorder.NewSession(&settings, recorder.WithSource(src))
//	if err := s.BeginRecording(ctx); err != nil { ... }
//	for !s.Done() {
//	    s.PrepareNewFrame()
//	    render(s.DeltaTime())
//	    if err := s.RecordFrame(ctx); err != nil { ... }
//	}
//	err := s.EndRecording(ctx)
type Session struct {
	id       uuid.UUID
	settings *Settings
	opts     options
	strategy Strategy

	gov  *timing.Governor
	ctrl *accumulation.Controller
	pool *readback.Pool

	began     bool
	recording bool
	done      bool

	// releases undo what BeginRecording acquired, most recent last.
	releases []func()

	rateHeld  bool
	audioSlot bool
	take      int

	// tick counts host frames since BeginRecording.
	tick int64
	// subFrameIndex counts accumulation sub-frames since BeginRecording.
	subFrameIndex int64
	frameIndex    int64
	recorded      int64
	dropped       int64

	interval  float64
	delta     float64
	gameTime  float64
	frameTime float64

	startedAt      time.Time
	frameStartedAt time.Time

	audioWritten int64
	audioBuf     []int16
}

// NewSession creates a session for settings. The session keeps the
// pointer: EndRecording increments settings.Take.
func NewSession(settings *Settings, opts ...Option) (*Session, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: nil settings", ErrInvalidSettings)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	st := o.strategy
	if st == nil {
		var err error
		if st, err = NewStrategy(settings.Kind); err != nil {
			return nil, err
		}
	}
	return &Session{
		id:       uuid.New(),
		settings: settings,
		opts:     o,
		strategy: st,
	}, nil
}

// BeginRecording validates the settings and starts a take. Everything
// acquired is released again when a step fails, leaving Take unchanged.
func (s *Session) BeginRecording(ctx context.Context) (err error) {
	if s.recording {
		return ErrAlreadyRecording
	}
	if s.done {
		return ErrSessionEnded
	}

	v := s.settings.Validate()
	for _, w := range v.Warnings {
		slogger().Warn("recorder: "+w, "recorder", s.settings.DisplayName())
	}
	if err := v.Err(); err != nil {
		return err
	}

	s.reset()
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	s.gov, err = timing.NewGovernor(timing.Config{
		FrameRate:    s.settings.FrameRate,
		Playback:     s.settings.Playback,
		CapFrameRate: s.settings.CapFrameRate,
		Clock:        s.opts.clock,
		Sleep:        s.opts.sleep,
		Spin:         s.opts.spin,
		Latch:        s.opts.shared.Latch(),
	})
	if err != nil {
		return err
	}
	s.interval = s.gov.Interval()

	if s.settings.Kind.Video() {
		if err := s.openVideo(); err != nil {
			return err
		}
	}

	s.ctrl, err = accumulation.NewController(s.settings.Accumulation, s.opts.pipeline)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	if s.settings.Playback == schedule.Constant {
		s.opts.shared.AcquireFrameRate(s.settings.FrameRate)
		s.rateHeld = true
		s.releases = append(s.releases, func() {
			s.opts.shared.ReleaseFrameRate()
			s.rateHeld = false
		})
	}
	if s.settings.Kind == KindMovie {
		first := s.opts.shared.AcquireMovie()
		s.releases = append(s.releases, s.opts.shared.ReleaseMovie)
		switch {
		case !s.settings.CaptureAudio:
		case !first:
			slogger().Warn("recorder: another movie recorder holds the audio track, recording video only",
				"recorder", s.settings.DisplayName())
		case s.opts.audio == nil:
			slogger().Warn("recorder: audio capture requested without an audio source",
				"recorder", s.settings.DisplayName())
		default:
			s.audioSlot = true
		}
	}

	if err := s.makeOutputDir(); err != nil {
		return err
	}
	if err := s.strategy.BeginSession(ctx, s); err != nil {
		return fmt.Errorf("recorder: begin %s: %w", s.settings.Kind, err)
	}
	s.releases = append(s.releases, func() {
		if err := s.strategy.EndSession(context.Background(), s); err != nil {
			slogger().Warn("recorder: closing output after failed start", "err", err)
		}
	})

	if err := s.ctrl.Begin(ctx); err != nil {
		return err
	}
	s.releases = append(s.releases, s.ctrl.End)

	s.gov.Begin()
	s.startedAt = s.gov.StartTime()
	s.frameStartedAt = s.startedAt
	s.take = s.settings.Take
	s.began = true
	s.recording = true

	slogger().Info("recorder: recording started",
		"recorder", s.settings.DisplayName(),
		"session", s.id,
		"take", s.take,
		"mode", s.settings.RecordMode,
		"playback", s.settings.Playback,
		"fps", s.settings.FrameRate,
		"samples", s.ctrl.Samples())
	return nil
}

// openVideo checks the source against the settings and creates the
// readback pool.
func (s *Session) openVideo() error {
	src := s.opts.source
	if src == nil {
		return ErrNoSource
	}
	if src.Width() != s.settings.Width || src.Height() != s.settings.Height {
		return fmt.Errorf("%w: source is %dx%d, settings %dx%d", ErrSourceMismatch,
			src.Width(), src.Height(), s.settings.Width, s.settings.Height)
	}
	if s.settings.Format == gputypes.TextureFormatUndefined {
		s.settings.Format = src.Format()
	} else if src.Format() != s.settings.Format {
		return fmt.Errorf("%w: source format %v, settings %v", ErrSourceMismatch,
			src.Format(), s.settings.Format)
	}

	backend := s.opts.backend
	if backend == nil {
		if _, ok := src.(readback.PixelSource); !ok {
			return ErrNoBackend
		}
		backend = &readback.CPUBackend{}
	}
	s.pool = readback.NewPool(backend,
		readback.WithMaxBuffers(s.opts.maxBuffers),
		readback.WithLabel(s.id.String()))
	pool := s.pool
	s.releases = append(s.releases, func() {
		if err := pool.Dispose(context.Background()); err != nil {
			slogger().Warn("recorder: disposing readback pool", "err", err)
		}
	})
	return nil
}

// makeOutputDir creates the directory of the first output file.
func (s *Session) makeOutputDir() error {
	dir := filepath.Dir(s.OutputPath(0))
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("recorder: output directory: %w", err)
	}
	return nil
}

func (s *Session) reset() {
	s.releases = s.releases[:0]
	s.pool = nil
	s.audioSlot = false
	s.tick = 0
	s.subFrameIndex = 0
	s.frameIndex = 0
	s.recorded = 0
	s.dropped = 0
	s.delta = 0
	s.gameTime = 0
	s.frameTime = 0
	s.audioWritten = 0
	s.startedAt = time.Time{}
}

// release runs the recorded releases in reverse order.
func (s *Session) release() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = s.releases[:0]
}

// PrepareNewFrame starts a host frame: it caps the frame rate, advances the
// accumulation sub-frame and fixes the frame's time. It does nothing when
// the session is not recording.
func (s *Session) PrepareNewFrame() {
	if !s.recording {
		return
	}
	s.gov.Cap(s.opts.shared.enterFrame(s.id))
	s.frameStartedAt = s.opts.clock()

	samples := s.ctrl.Samples()
	newFrame := true
	if s.ctrl.Active() {
		s.subFrameIndex++
		newFrame = (s.subFrameIndex-1)%int64(samples) == 0
		s.ctrl.BeginSubFrame()
	}

	if s.settings.Playback == schedule.Variable {
		now := s.gov.Elapsed()
		s.delta = now - s.gameTime
		s.gameTime = now
		s.frameTime = now
		return
	}
	s.delta = s.gov.CaptureDeltaTime(s.gameTime) / float64(samples)
	if newFrame {
		s.frameTime = s.gameTime
	}
}

// hostFrame returns the frame index the scheduler sees. Accumulated
// sub-frames share the index of their recorded frame.
func (s *Session) hostFrame() int64 {
	if s.ctrl.Active() && s.subFrameIndex > 0 {
		return (s.subFrameIndex - 1) / int64(s.ctrl.Samples())
	}
	return s.tick
}

// RecordFrame captures the current host frame if the schedule selects it.
// Failures of a single frame are logged and counted; the session goes on.
//
// Once the end condition is reached the session stops recording, Done
// reports true and RecordFrame returns nil until EndRecording.
func (s *Session) RecordFrame(ctx context.Context) error {
	if s.done {
		return nil
	}
	if !s.recording {
		return ErrNotRecording
	}

	s.ctrl.EndSubFrame()
	if s.pool != nil {
		s.pool.Poll()
	}

	frame := s.hostFrame()
	if schedule.IsAfterEnd(schedule.EndParams{
		Mode:       s.settings.RecordMode,
		FrameIndex: int(frame),
		Timestamp:  s.frameTime,
		EndFrame:   s.settings.EndFrame,
		EndTime:    s.settings.EndTime,
		Recorded:   int(s.frameIndex),
	}) {
		s.recording = false
		s.done = true
		slogger().Info("recorder: end of range reached",
			"recorder", s.settings.DisplayName(), "frames", s.recorded)
		return nil
	}
	defer s.advance()

	if schedule.ShouldSkipFrame(schedule.FrameParams{
		Mode:                 s.settings.RecordMode,
		Playback:             s.settings.Playback,
		FrameIndex:           int(frame),
		Timestamp:            s.frameTime,
		CaptureEveryNthFrame: s.settings.CaptureEveryNthFrame,
		StartFrame:           s.settings.StartFrame,
		StartTime:            s.settings.StartTime,
		FrameRate:            s.settings.FrameRate,
		Recording:            true,
	}) {
		return nil
	}
	if schedule.ShouldSkipSubFrame(s.ctrl.Active(), s.settings.Accumulation.CaptureAccumulation,
		s.ctrl.Samples(), int(s.subFrameIndex)) {
		return nil
	}

	info := FrameInfo{
		Index:     s.frameIndex,
		HostFrame: frame,
		Time:      s.frameTime,
		Interval:  s.interval,
	}
	if err := s.strategy.RecordFrame(ctx, s, info); err != nil {
		s.dropped++
		slogger().Warn("recorder: frame dropped",
			"recorder", s.settings.DisplayName(), "frame", info.Index, "err", err)
	} else if !s.settings.Kind.Video() {
		s.recorded++
	}
	s.frameIndex++
	return nil
}

// advance moves the host clock to the next tick.
func (s *Session) advance() {
	s.tick++
	if s.settings.Playback == schedule.Constant {
		s.gameTime += s.delta
	}
}

// readFrame requests a readback of the source. sink runs when the pixels
// arrive, with a non-nil error when the transfer failed. A job returned by
// sink keeps the readback buffer from reuse until it is done, and the frame
// is counted by the strategy once the job finishes.
func (s *Session) readFrame(info FrameInfo, sink frameSink) error {
	tag := ""
	if s.settings.Kind == KindAOV {
		tag = s.settings.AOV
	}
	_, err := s.pool.RequestReadback(s.opts.source, func(r readback.Result) {
		f := encoder.Frame{
			Index:  info.Index,
			Time:   info.Time,
			Data:   r.Data,
			Width:  r.Width,
			Height: r.Height,
			Format: r.Format,
			Tag:    tag,
		}
		job, err := sink(f, r.Err)
		if err == nil {
			err = r.Err
		}
		if err != nil || job == nil {
			s.frameWritten(info.Index, err)
			return
		}
		if err := s.pool.RegisterDependency(r.Buffer, job); err != nil {
			// The buffer could be handed out again while the job reads it.
			_ = job.Wait(context.Background())
		}
	})
	if err != nil {
		// The frame never reached the sink; let ordered sinks skip it.
		_, _ = sink(encoder.Frame{Index: info.Index}, err)
		return err
	}
	return nil
}

// frameWritten counts a video frame whose output has finished.
func (s *Session) frameWritten(index int64, err error) {
	if err != nil {
		s.dropped++
		slogger().Warn("recorder: frame dropped",
			"recorder", s.settings.DisplayName(), "frame", index, "err", err)
		return
	}
	s.recorded++
}

// audioBlock reads the samples that cover the recorded frames up to and
// including info. Rounding is absorbed so the track length follows the
// recorded duration.
func (s *Session) audioBlock(info FrameInfo) ([]int16, error) {
	src := s.opts.audio
	rate, ch := src.SampleRate(), src.Channels()
	if rate <= 0 || ch <= 0 {
		return nil, fmt.Errorf("recorder: audio source reports %d Hz, %d channels", rate, ch)
	}
	end := int64(math.Round(float64(info.Index+1) * info.Interval * float64(rate)))
	n := end - s.audioWritten
	if n <= 0 {
		return nil, nil
	}
	want := int(n) * ch
	if cap(s.audioBuf) < want {
		s.audioBuf = make([]int16, want)
	}
	buf := s.audioBuf[:want]
	got, err := src.ReadAudio(buf)
	got -= got % ch
	s.audioWritten = end
	return buf[:got], err
}

// EndRecording finishes the take: it reverts accumulation, waits for the
// outstanding readbacks, closes the output and releases the shared
// references. Take is incremented once per successful BeginRecording.
// Further calls return nil.
func (s *Session) EndRecording(ctx context.Context) error {
	if !s.began {
		return nil
	}
	s.began = false
	s.recording = false
	s.done = false

	var errs []error
	s.ctrl.End()

	var held, stats readback.Stats
	if s.pool != nil {
		held = s.pool.Stats()
		if err := s.pool.Dispose(ctx); err != nil {
			errs = append(errs, fmt.Errorf("recorder: readback: %w", err))
		}
		stats = s.pool.Stats()
	}
	if err := s.strategy.EndSession(ctx, s); err != nil {
		errs = append(errs, fmt.Errorf("recorder: end %s: %w", s.settings.Kind, err))
	}
	if s.rateHeld {
		s.opts.shared.ReleaseFrameRate()
		s.rateHeld = false
	}
	if s.settings.Kind == KindMovie {
		s.opts.shared.ReleaseMovie()
	}
	s.opts.shared.leaveFrame(s.id)
	s.releases = s.releases[:0]
	s.settings.Take = s.take + 1

	slogger().Info("recorder: recording finished",
		"recorder", s.settings.DisplayName(),
		"session", s.id,
		"take", s.take,
		"recorded", s.recorded,
		"dropped", s.dropped,
		"buffers", held.Buffers,
		"readback", humanize.Bytes(held.Bytes),
		"abandoned", stats.Abandoned,
		"duration", s.opts.clock().Sub(s.startedAt).Round(time.Millisecond))
	return errors.Join(errs...)
}

// OutputPath expands the output template for frame.
func (s *Session) OutputPath(frame int64) string {
	return ExpandTemplate(s.settings.OutputPath, TemplateContext{
		Recorder:  s.settings.DisplayName(),
		Take:      s.settings.Take,
		Frame:     frame,
		Now:       s.startedOrNow(),
		Width:     s.settings.Width,
		Height:    s.settings.Height,
		AOV:       s.settings.AOV,
		Extension: s.settings.Extension(),
		Project:   s.opts.project,
	})
}

// startedOrNow keeps <Time> and <Date> stable for the whole take.
func (s *Session) startedOrNow() time.Time {
	if s.startedAt.IsZero() {
		s.startedAt = s.opts.clock()
	}
	return s.startedAt
}

func (s *Session) videoMeta() encoder.Meta {
	return encoder.Meta{
		Name:         s.settings.DisplayName(),
		Width:        s.settings.Width,
		Height:       s.settings.Height,
		FrameRate:    s.settings.FrameRate,
		FlipVertical: s.settings.FlipVertical,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Settings returns the settings the session records with.
func (s *Session) Settings() *Settings { return s.settings }

// IsRecording reports whether frames are being recorded.
func (s *Session) IsRecording() bool { return s.recording }

// Done reports whether the end of the recording range has been reached.
// The host should call EndRecording.
func (s *Session) Done() bool { return s.done }

// FrameIndex returns the number of frames the schedule selected so far.
func (s *Session) FrameIndex() int64 { return s.frameIndex }

// SubFrameIndex returns the number of accumulation sub-frames so far. It
// stays 0 without accumulation.
func (s *Session) SubFrameIndex() int64 { return s.subFrameIndex }

// RecordedFrames returns the number of frames written to the output.
func (s *Session) RecordedFrames() int64 { return s.recorded }

// DroppedFrames returns the number of selected frames that were lost.
func (s *Session) DroppedFrames() int64 { return s.dropped }

// StartedAt returns the wall-clock start of the take.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// FrameStartedAt returns the wall-clock start of the current host frame.
func (s *Session) FrameStartedAt() time.Time { return s.frameStartedAt }

// DeltaTime returns the time step, in seconds, the host should advance by
// for the current host frame.
func (s *Session) DeltaTime() float64 { return s.delta }

// Time returns the session time of the current host frame in seconds.
func (s *Session) Time() float64 { return s.gameTime }

// Stats returns the readback pool counters. Sessions without a pool return
// zero stats.
func (s *Session) Stats() readback.Stats {
	if s.pool == nil {
		return readback.Stats{}
	}
	return s.pool.Stats()
}
