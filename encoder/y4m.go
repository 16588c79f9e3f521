package encoder

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Y4M writes an uncompressed 4:4:4 YUV4MPEG2 movie. When the stream is
// opened with audio, samples go to a WAV file next to the movie.
type Y4M struct {
	path   string
	f      *os.File
	w      *bufio.Writer
	meta   Meta
	audio  *WAV
	frames int
	planes []byte
}

// NewY4M returns a movie stream writing to path.
func NewY4M(path string) *Y4M {
	return &Y4M{path: path}
}

// AudioPath returns the sidecar path used for audio.
func (m *Y4M) AudioPath() string {
	return strings.TrimSuffix(m.path, filepath.Ext(m.path)) + ".wav"
}

// Open implements Stream.
func (m *Y4M) Open(meta Meta) error {
	if m.f != nil {
		return ErrAlreadyOpen
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrFrameSize, meta.Width, meta.Height)
	}
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("encoder: %w", err)
		}
	}
	f, err := os.Create(m.path)
	if err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	m.f = f
	m.w = bufio.NewWriter(f)
	m.meta = meta
	m.frames = 0
	num, den := frameRateRatio(meta.FrameRate)
	if _, err := fmt.Fprintf(m.w, "YUV4MPEG2 W%d H%d F%d:%d Ip A1:1 C444\n", meta.Width, meta.Height, num, den); err != nil {
		_ = m.closeVideo()
		return fmt.Errorf("encoder: y4m header: %w", err)
	}
	if meta.Audio {
		m.audio = NewWAV(m.AudioPath())
		if err := m.audio.Open(meta); err != nil {
			m.audio = nil
			_ = m.closeVideo()
			return err
		}
	}
	slogger().Debug("encoder: movie open", "path", m.path, "fps", fmt.Sprintf("%d:%d", num, den), "audio", meta.Audio)
	return nil
}

// frameRateRatio expresses fps as a rational, recognising the NTSC rates.
func frameRateRatio(fps float64) (int, int) {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return 30, 1
	}
	if r := math.Round(fps); math.Abs(fps-r) < 1e-9 {
		return int(r), 1
	}
	if ntsc := math.Round(fps * 1.001); math.Abs(fps-ntsc/1.001) < 1e-3 {
		return int(ntsc) * 1000, 1001
	}
	return int(math.Round(fps * 1000)), 1000
}

// WriteFrame implements Stream. Frames are written in call order; the
// container has a fixed rate so f.Time is not stored.
func (m *Y4M) WriteFrame(f Frame) error {
	if m.f == nil {
		return ErrNotOpen
	}
	if f.Width != m.meta.Width || f.Height != m.meta.Height {
		return fmt.Errorf("%w: %dx%d, stream is %dx%d", ErrFrameSize, f.Width, f.Height, m.meta.Width, m.meta.Height)
	}
	img, err := FrameImage(f, m.meta.FlipVertical)
	if err != nil {
		return err
	}
	rgba := imaging.Clone(img)
	n := f.Width * f.Height
	if cap(m.planes) < 3*n {
		m.planes = make([]byte, 3*n)
	}
	planes := m.planes[:3*n]
	for i := 0; i < n; i++ {
		p := rgba.Pix[i*4 : i*4+3 : i*4+3]
		y, cb, cr := color.RGBToYCbCr(p[0], p[1], p[2])
		planes[i] = y
		planes[n+i] = cb
		planes[2*n+i] = cr
	}
	if _, err := m.w.WriteString("FRAME\n"); err != nil {
		return fmt.Errorf("encoder: y4m: %w", err)
	}
	if _, err := m.w.Write(planes); err != nil {
		return fmt.Errorf("encoder: y4m: %w", err)
	}
	m.frames++
	return nil
}

// WriteAudio implements Stream.
func (m *Y4M) WriteAudio(samples []int16) error {
	if m.f == nil {
		return ErrNotOpen
	}
	if m.audio == nil {
		return ErrNoAudio
	}
	return m.audio.WriteAudio(samples)
}

// Close implements Stream.
func (m *Y4M) Close() error {
	if m.f == nil {
		return nil
	}
	var audioErr error
	if m.audio != nil {
		audioErr = m.audio.Close()
		m.audio = nil
	}
	slogger().Debug("encoder: movie closed", "path", m.path, "frames", m.frames)
	return errors.Join(m.closeVideo(), audioErr)
}

func (m *Y4M) closeVideo() error {
	f := m.f
	m.f = nil
	return errors.Join(m.w.Flush(), f.Close())
}

// Frames returns the number of frames written.
func (m *Y4M) Frames() int { return m.frames }
