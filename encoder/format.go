package encoder

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ImageFormat selects an image file encoding.
type ImageFormat uint8

const (
	PNG ImageFormat = iota
	JPEG
	TIFF
	BMP
	Raw
)

var formatNames = [...]string{PNG: "png", JPEG: "jpeg", TIFF: "tiff", BMP: "bmp", Raw: "raw"}

// String returns the lower-case format name.
func (f ImageFormat) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("ImageFormat(%d)", f)
}

// ParseImageFormat parses a format name or file extension.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "tiff", "tif":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	case "raw", "rgba":
		return Raw, nil
	}
	return 0, fmt.Errorf("encoder: unknown image format %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f ImageFormat) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *ImageFormat) UnmarshalText(b []byte) error {
	v, err := ParseImageFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ImageEncoder writes a single image.
type ImageEncoder interface {
	Encode(w io.Writer, img image.Image) error
	Extension() string
}

// EncoderOption configures an ImageEncoder.
type EncoderOption func(*encoderOptions)

type encoderOptions struct {
	quality     int
	compression png.CompressionLevel
}

// WithQuality sets the JPEG quality, 1 to 100.
func WithQuality(q int) EncoderOption {
	return func(o *encoderOptions) {
		o.quality = q
	}
}

// WithPNGCompression sets the PNG compression level.
func WithPNGCompression(level png.CompressionLevel) EncoderOption {
	return func(o *encoderOptions) {
		o.compression = level
	}
}

// NewImageEncoder returns the encoder for format.
func NewImageEncoder(format ImageFormat, opts ...EncoderOption) (ImageEncoder, error) {
	o := encoderOptions{quality: 90, compression: png.DefaultCompression}
	for _, opt := range opts {
		opt(&o)
	}
	switch format {
	case PNG:
		return pngEncoder{enc: png.Encoder{CompressionLevel: o.compression}}, nil
	case JPEG:
		if o.quality < 1 || o.quality > 100 {
			return nil, fmt.Errorf("encoder: jpeg quality %d outside [1,100]", o.quality)
		}
		return jpegEncoder{quality: o.quality}, nil
	case TIFF:
		return tiffEncoder{}, nil
	case BMP:
		return bmpEncoder{}, nil
	case Raw:
		return rawEncoder{}, nil
	}
	return nil, fmt.Errorf("encoder: unknown image format %v", format)
}

type pngEncoder struct{ enc png.Encoder }

func (e pngEncoder) Encode(w io.Writer, img image.Image) error { return e.enc.Encode(w, img) }
func (pngEncoder) Extension() string                           { return "png" }

type jpegEncoder struct{ quality int }

func (e jpegEncoder) Encode(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: e.quality})
}
func (jpegEncoder) Extension() string { return "jpg" }

type tiffEncoder struct{}

func (tiffEncoder) Encode(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}
func (tiffEncoder) Extension() string { return "tiff" }

type bmpEncoder struct{}

func (bmpEncoder) Encode(w io.Writer, img image.Image) error { return bmp.Encode(w, img) }
func (bmpEncoder) Extension() string                         { return "bmp" }

// rawEncoder writes 8-bit non-premultiplied RGBA rows with no header.
type rawEncoder struct{}

func (rawEncoder) Encode(w io.Writer, img image.Image) error {
	_, err := w.Write(imaging.Clone(img).Pix)
	return err
}
func (rawEncoder) Extension() string { return "rgba" }
