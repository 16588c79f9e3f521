package encoder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Audio defaults.
const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
)

const wavHeaderSize = 44

// WAV writes interleaved PCM16 audio to a RIFF WAVE file. The chunk sizes
// are patched on Close.
type WAV struct {
	path       string
	f          *os.File
	w          *bufio.Writer
	sampleRate int
	channels   int
	dataBytes  uint32
	buf        []byte
}

// NewWAV returns a WAV stream writing to path.
func NewWAV(path string) *WAV {
	return &WAV{path: path}
}

// Open implements Stream.
func (a *WAV) Open(meta Meta) error {
	if a.f != nil {
		return ErrAlreadyOpen
	}
	a.sampleRate = meta.SampleRate
	if a.sampleRate <= 0 {
		a.sampleRate = DefaultSampleRate
	}
	a.channels = meta.Channels
	if a.channels <= 0 {
		a.channels = DefaultChannels
	}
	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("encoder: %w", err)
		}
	}
	f, err := os.Create(a.path)
	if err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	a.f = f
	a.w = bufio.NewWriter(f)
	a.dataBytes = 0
	if _, err := a.w.Write(a.header()); err != nil {
		_ = f.Close()
		a.f = nil
		return fmt.Errorf("encoder: wav header: %w", err)
	}
	return nil
}

func (a *WAV) header() []byte {
	h := make([]byte, wavHeaderSize)
	blockAlign := a.channels * 2
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], 36+a.dataBytes)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:], uint16(a.channels))
	binary.LittleEndian.PutUint32(h[24:], uint32(a.sampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(a.sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(h[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:], 16)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], a.dataBytes)
	return h
}

// WriteFrame implements Stream. WAV files carry no video.
func (a *WAV) WriteFrame(Frame) error { return ErrNoVideo }

// WriteAudio implements Stream.
func (a *WAV) WriteAudio(samples []int16) error {
	if a.f == nil {
		return ErrNotOpen
	}
	if len(samples)%a.channels != 0 {
		return fmt.Errorf("encoder: %d samples is not a multiple of %d channels", len(samples), a.channels)
	}
	n := len(samples) * 2
	if cap(a.buf) < n {
		a.buf = make([]byte, n)
	}
	b := a.buf[:n]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	if _, err := a.w.Write(b); err != nil {
		return fmt.Errorf("encoder: wav: %w", err)
	}
	a.dataBytes += uint32(n)
	return nil
}

// Close implements Stream.
func (a *WAV) Close() error {
	if a.f == nil {
		return nil
	}
	f := a.f
	a.f = nil
	err := a.w.Flush()
	if err == nil {
		if _, err = f.Seek(0, io.SeekStart); err == nil {
			_, err = f.Write(a.header())
		}
	}
	return errors.Join(err, f.Close())
}

// Samples returns the number of sample frames written.
func (a *WAV) Samples() int {
	if a.channels == 0 {
		return 0
	}
	return int(a.dataBytes) / (2 * a.channels)
}
