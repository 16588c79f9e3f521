package recorder

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/recorder/encoder"
	"github.com/gogpu/recorder/readback"
)

// FrameInfo describes a frame being recorded.
type FrameInfo struct {
	// Index is the recorded frame number, starting at 0.
	Index int64

	// HostFrame is the host frame index the scheduler evaluated.
	HostFrame int64

	// Time is the session time of the frame in seconds.
	Time float64

	// Interval is the nominal frame interval in seconds.
	Interval float64
}

// Strategy writes the output of one recorder kind. A Session calls
// BeginSession once, RecordFrame for every frame the scheduler selects and
// EndSession once, all on the host goroutine.
type Strategy interface {
	BeginSession(ctx context.Context, s *Session) error
	RecordFrame(ctx context.Context, s *Session, info FrameInfo) error
	EndSession(ctx context.Context, s *Session) error
}

// frameSink consumes a read-back frame. A sink that keeps reading f.Data
// after it returns hands back the job doing so.
type frameSink func(f encoder.Frame, err error) (readback.Job, error)

// imageStrategy writes one file per frame. AOV recorders use it with the
// layer name in the <AOV> wildcard and the frame tag.
//
// With encode workers the files are written off the host goroutine, straight
// from the readback buffer, which stays reserved until the file is written.
type imageStrategy struct {
	seq *encoder.ImageSequence

	// slots bounds the running encodes; nil encodes on the host goroutine.
	slots chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	finished []*encodeJob
}

func (st *imageStrategy) BeginSession(_ context.Context, s *Session) error {
	enc, err := encoder.NewImageEncoder(s.settings.ImageFormat)
	if err != nil {
		return err
	}
	st.seq = encoder.NewImageSequence(func(f encoder.Frame) string {
		return s.OutputPath(f.Index)
	}, enc)
	st.slots = nil
	if n := s.opts.encodeWorkers; n > 0 {
		st.slots = make(chan struct{}, n)
	}
	st.finished = nil
	return st.seq.Open(s.videoMeta())
}

func (st *imageStrategy) RecordFrame(_ context.Context, s *Session, info FrameInfo) error {
	st.reap(s)
	return s.readFrame(info, func(f encoder.Frame, err error) (readback.Job, error) {
		if err != nil {
			return nil, nil
		}
		if st.slots == nil {
			return nil, st.seq.WriteFrame(f)
		}
		return st.encode(f), nil
	})
}

// encode writes f on its own goroutine once a worker slot is free.
func (st *imageStrategy) encode(f encoder.Frame) *encodeJob {
	job := &encodeJob{index: f.Index, done: make(chan struct{})}
	st.slots <- struct{}{}
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		err := st.seq.WriteFrame(f)
		<-st.slots
		st.mu.Lock()
		job.err = err
		st.finished = append(st.finished, job)
		st.mu.Unlock()
		close(job.done)
	}()
	return job
}

// reap counts the frames whose encode finished.
func (st *imageStrategy) reap(s *Session) {
	st.mu.Lock()
	finished := st.finished
	st.finished = nil
	st.mu.Unlock()
	for _, job := range finished {
		s.frameWritten(job.index, job.err)
	}
}

func (st *imageStrategy) EndSession(_ context.Context, s *Session) error {
	if st.seq == nil {
		return nil
	}
	st.wg.Wait()
	st.reap(s)
	return st.seq.Close()
}

// encodeJob is one frame being written off the host goroutine. It
// implements readback.Job.
type encodeJob struct {
	index int64
	done  chan struct{}
	err   error
}

func (j *encodeJob) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

func (j *encodeJob) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// movieStrategy writes a single stream. Readback may complete out of
// order, so frames are reordered by index before they reach the stream.
type movieStrategy struct {
	movie *encoder.Y4M
	audio bool
	order reorder
}

func (st *movieStrategy) BeginSession(_ context.Context, s *Session) error {
	meta := s.videoMeta()
	if s.audioSlot {
		meta.Audio = true
		meta.SampleRate = s.opts.audio.SampleRate()
		meta.Channels = s.opts.audio.Channels()
	}
	st.audio = meta.Audio
	st.order = reorder{}
	st.movie = encoder.NewY4M(s.OutputPath(0))
	return st.movie.Open(meta)
}

func (st *movieStrategy) RecordFrame(_ context.Context, s *Session, info FrameInfo) error {
	if st.audio {
		block, err := s.audioBlock(info)
		if err != nil {
			slogger().Warn("recorder: audio read failed", "recorder", s.settings.DisplayName(), "err", err)
		}
		if len(block) > 0 {
			if err := st.movie.WriteAudio(block); err != nil {
				slogger().Warn("recorder: audio write failed", "recorder", s.settings.DisplayName(), "err", err)
			}
		}
	}
	return s.readFrame(info, func(f encoder.Frame, err error) (readback.Job, error) {
		return nil, st.order.push(f, err, st.movie.WriteFrame)
	})
}

func (st *movieStrategy) EndSession(context.Context, *Session) error {
	if st.movie == nil {
		return nil
	}
	if n := st.order.pending(); n > 0 {
		slogger().Warn("recorder: movie closed with frames waiting on a gap", "frames", n)
	}
	return st.movie.Close()
}

// reorder releases frames to write in index order. Failed frames leave
// no gap.
type reorder struct {
	next  int64
	held  map[int64]encoder.Frame
	holes map[int64]struct{}
}

func (r *reorder) push(f encoder.Frame, failed error, write func(encoder.Frame) error) error {
	switch {
	case failed != nil:
		if r.holes == nil {
			r.holes = make(map[int64]struct{})
		}
		r.holes[f.Index] = struct{}{}
	case f.Index == r.next:
		if err := write(f); err != nil {
			r.next++
			return err
		}
		r.next++
	default:
		if r.held == nil {
			r.held = make(map[int64]encoder.Frame)
		}
		f.Data = append([]byte(nil), f.Data...)
		r.held[f.Index] = f
	}
	return r.flush(write)
}

func (r *reorder) flush(write func(encoder.Frame) error) error {
	for {
		if _, ok := r.holes[r.next]; ok {
			delete(r.holes, r.next)
			r.next++
			continue
		}
		f, ok := r.held[r.next]
		if !ok {
			return nil
		}
		delete(r.held, r.next)
		r.next++
		if err := write(f); err != nil {
			return err
		}
	}
}

func (r *reorder) pending() int { return len(r.held) }

// audioStrategy writes the audio track only.
type audioStrategy struct {
	wav *encoder.WAV
}

func (st *audioStrategy) BeginSession(_ context.Context, s *Session) error {
	src := s.opts.audio
	if src == nil {
		return ErrNoAudioSource
	}
	st.wav = encoder.NewWAV(s.OutputPath(0))
	return st.wav.Open(encoder.Meta{
		Name:       s.settings.DisplayName(),
		Audio:      true,
		SampleRate: src.SampleRate(),
		Channels:   src.Channels(),
	})
}

func (st *audioStrategy) RecordFrame(_ context.Context, s *Session, info FrameInfo) error {
	block, err := s.audioBlock(info)
	if err != nil {
		return fmt.Errorf("recorder: audio read: %w", err)
	}
	if len(block) == 0 {
		return nil
	}
	return st.wav.WriteAudio(block)
}

func (st *audioStrategy) EndSession(context.Context, *Session) error {
	if st.wav == nil {
		return nil
	}
	return st.wav.Close()
}

// animationStrategy samples properties once per recorded frame.
type animationStrategy struct {
	clip *encoder.ClipWriter
}

func (st *animationStrategy) BeginSession(_ context.Context, s *Session) error {
	if s.opts.animation == nil {
		return ErrNoAnimationSource
	}
	st.clip = encoder.NewClipWriter(s.OutputPath(0))
	return st.clip.Open(s.settings.DisplayName(), s.settings.FrameRate)
}

func (st *animationStrategy) RecordFrame(_ context.Context, s *Session, info FrameInfo) error {
	return st.clip.Add(encoder.Sample{
		Frame:  info.Index,
		Time:   info.Time,
		Values: s.opts.animation.Sample(),
	})
}

func (st *animationStrategy) EndSession(context.Context, *Session) error {
	if st.clip == nil {
		return nil
	}
	return st.clip.Close()
}
