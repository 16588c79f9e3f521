// Package encoder writes recorded frames, audio and animation samples to
// files.
//
// A Stream receives a session's output in order: Open once with the
// session Meta, WriteFrame for each recorded frame, WriteAudio for each
// audio block, then Close. ImageSequence writes one image file per frame,
// Y4M writes an uncompressed YUV4MPEG2 movie with an optional WAV sidecar
// and WAV writes PCM16 audio only. Clip collects animation samples and
// writes them as JSON.
package encoder

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// Stream errors.
var (
	// ErrNotOpen is returned when a stream is written before Open or after Close.
	ErrNotOpen = errors.New("encoder: stream not open")

	// ErrAlreadyOpen is returned when Open is called twice.
	ErrAlreadyOpen = errors.New("encoder: stream already open")

	// ErrNoVideo is returned by audio-only streams for WriteFrame.
	ErrNoVideo = errors.New("encoder: stream has no video track")

	// ErrNoAudio is returned by streams that were opened without audio.
	ErrNoAudio = errors.New("encoder: stream has no audio track")

	// ErrFrameSize is returned when a frame does not match the stream size.
	ErrFrameSize = errors.New("encoder: frame size mismatch")
)

// Meta describes a stream.
type Meta struct {
	Name      string
	Width     int
	Height    int
	FrameRate float64

	// FlipVertical flips frames before encoding. GPU readback is bottom-up
	// on some backends.
	FlipVertical bool

	// Audio enables the audio track.
	Audio      bool
	SampleRate int
	Channels   int
}

// Frame is one recorded frame.
type Frame struct {
	// Index is the recorded frame number within the session.
	Index int64

	// Time is the presentation time in seconds since the session start.
	Time float64

	// Data holds tightly packed pixels in Format. Streams do not retain it
	// past WriteFrame.
	Data   []byte
	Width  int
	Height int
	Format gputypes.TextureFormat

	// Tag names the render layer for AOV output.
	Tag string
}

// Stream consumes a session's output.
type Stream interface {
	Open(meta Meta) error
	WriteFrame(f Frame) error
	WriteAudio(samples []int16) error
	Close() error
}
