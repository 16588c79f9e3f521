package recorder

import (
	"image"
	"image/draw"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/recorder/readback"
)

// Source is the texture a video recorder captures. CPU sources also
// implement readback.PixelSource; GPU sources are read through a backend.
type Source = readback.Texture

// AudioSource supplies interleaved PCM16 audio.
type AudioSource interface {
	SampleRate() int
	Channels() int

	// ReadAudio fills dst and returns the number of samples written.
	ReadAudio(dst []int16) (int, error)
}

// AnimationSource reports the animated properties to record.
type AnimationSource interface {
	// Sample returns the current property values.
	Sample() map[string]float64
}

// ImageSource is a CPU-backed source wrapping an *image.RGBA.
//
// Example:
//
//	src := recorder.NewImageSource(1280, 720)
//	draw.Draw(src.Image(), src.Image().Bounds(), frame, image.Point{}, draw.Src)
type ImageSource struct {
	img *image.RGBA
}

// NewImageSource creates a source with a new zeroed image.
func NewImageSource(width, height int) *ImageSource {
	return &ImageSource{
		img: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// NewImageSourceFromImage wraps an existing *image.RGBA.
// The image is used directly without copying.
func NewImageSourceFromImage(img *image.RGBA) *ImageSource {
	return &ImageSource{img: img}
}

// Width returns the source width in pixels.
func (s *ImageSource) Width() int {
	return s.img.Bounds().Dx()
}

// Height returns the source height in pixels.
func (s *ImageSource) Height() int {
	return s.img.Bounds().Dy()
}

// Format returns the pixel format (RGBA8).
func (s *ImageSource) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// Pixels returns tightly packed rows. A sub-image with padded rows is
// compacted into a copy.
func (s *ImageSource) Pixels() []byte {
	w, h := s.Width(), s.Height()
	if s.img.Stride == w*4 && s.img.Rect.Min == (image.Point{}) {
		return s.img.Pix[:w*h*4]
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), s.img, s.img.Rect.Min, draw.Src)
	return out.Pix
}

// Image returns the underlying *image.RGBA.
// The returned image shares memory with the source.
func (s *ImageSource) Image() *image.RGBA {
	return s.img
}

// Update copies img into the source, converting as needed.
func (s *ImageSource) Update(img image.Image) {
	draw.Draw(s.img, s.img.Bounds(), img, img.Bounds().Min, draw.Src)
}

// Ensure ImageSource implements readback.PixelSource.
var _ readback.PixelSource = (*ImageSource)(nil)
