package encoder

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/gogpu/recorder/internal/pixel"
)

// FrameImage decodes a frame into an image, flipping it vertically when
// flip is set. The result never aliases f.Data.
func FrameImage(f Frame, flip bool) (image.Image, error) {
	img, err := pixel.ToImage(f.Data, f.Width, f.Height, f.Format)
	if err != nil {
		return nil, fmt.Errorf("encoder: frame %d: %w", f.Index, err)
	}
	if flip {
		return imaging.FlipV(img), nil
	}
	return img, nil
}

// PathFunc names the file for a frame.
type PathFunc func(f Frame) string

// ImageSequence writes every frame to its own image file. Once open,
// WriteFrame may be called concurrently.
type ImageSequence struct {
	path PathFunc
	enc  ImageEncoder
	meta Meta
	open bool

	mu    sync.Mutex
	paths []string
}

// NewImageSequence returns a sequence writing frames with enc to the files
// named by path.
func NewImageSequence(path PathFunc, enc ImageEncoder) *ImageSequence {
	return &ImageSequence{path: path, enc: enc}
}

// Open implements Stream.
func (s *ImageSequence) Open(meta Meta) error {
	if s.open {
		return ErrAlreadyOpen
	}
	s.meta = meta
	s.open = true
	slogger().Debug("encoder: image sequence open", "name", meta.Name, "ext", s.enc.Extension())
	return nil
}

// WriteFrame implements Stream.
func (s *ImageSequence) WriteFrame(f Frame) error {
	if !s.open {
		return ErrNotOpen
	}
	if s.meta.Width > 0 && (f.Width != s.meta.Width || f.Height != s.meta.Height) {
		return fmt.Errorf("%w: %dx%d, stream is %dx%d", ErrFrameSize, f.Width, f.Height, s.meta.Width, s.meta.Height)
	}
	img, err := FrameImage(f, s.meta.FlipVertical)
	if err != nil {
		return err
	}
	name := s.path(f)
	if err := writeImageFile(name, s.enc, img); err != nil {
		return err
	}
	s.mu.Lock()
	s.paths = append(s.paths, name)
	s.mu.Unlock()
	return nil
}

func writeImageFile(name string, enc ImageEncoder, img image.Image) (err error) {
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("encoder: %w", err)
		}
	}
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("encoder: %w", cerr)
		}
	}()
	w := bufio.NewWriter(f)
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encoder: encode %s: %w", filepath.Base(name), err)
	}
	return w.Flush()
}

// WriteAudio implements Stream. Image sequences carry no audio.
func (s *ImageSequence) WriteAudio([]int16) error { return ErrNoAudio }

// Close implements Stream.
func (s *ImageSequence) Close() error {
	if s.open {
		slogger().Debug("encoder: image sequence closed", "name", s.meta.Name, "files", len(s.Paths()))
	}
	s.open = false
	return nil
}

// Paths returns the files written so far, in completion order.
func (s *ImageSequence) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.paths)
}
