package pixel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gputypes"
)

// Decode errors.
var (
	// ErrUnsupportedFormat is returned for formats without a decoder.
	ErrUnsupportedFormat = errors.New("pixel: unsupported format")

	// ErrShortBuffer is returned when data is smaller than the image.
	ErrShortBuffer = errors.New("pixel: buffer smaller than image")
)

// ToImage decodes tightly packed readback bytes into an image.
//
// 8-bit color formats decode to *image.RGBA (BGRA is swizzled), float
// color formats are clamped to [0,1] and decode to *image.NRGBA64, R8
// decodes to *image.Gray and R32Float to *image.Gray16.
//
// The returned image never aliases data, so the readback buffer can be
// recycled as soon as ToImage returns.
func ToImage(data []byte, width, height int, format gputypes.TextureFormat) (image.Image, error) {
	info, ok := Lookup(format)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	need := ImageBytes(width, height, format)
	if need == 0 {
		return nil, fmt.Errorf("pixel: invalid dimensions %dx%d", width, height)
	}
	if len(data) < need {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrShortBuffer, len(data), need)
	}

	rect := image.Rect(0, 0, width, height)
	switch {
	case info.Channels == 1 && !info.IsFloat:
		img := image.NewGray(rect)
		copy(img.Pix, data[:need])
		return img, nil

	case info.Channels == 1:
		img := image.NewGray16(rect)
		for i := 0; i < width*height; i++ {
			v := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
			img.SetGray16(i%width, i/width, color.Gray16{Y: unitToUint16(v)})
		}
		return img, nil

	case info.BitsPerChannel == 8:
		img := image.NewRGBA(rect)
		copy(img.Pix, data[:need])
		if info.SwapRB {
			for i := 0; i+3 < len(img.Pix); i += 4 {
				img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
			}
		}
		return img, nil

	default:
		img := image.NewNRGBA64(rect)
		bpc := info.BitsPerChannel / 8
		for i := 0; i < width*height; i++ {
			var c [4]uint16
			for ch := 0; ch < 4; ch++ {
				off := i*info.BytesPerPixel + ch*bpc
				var v float32
				if bpc == 2 {
					v = halfToFloat32(binary.LittleEndian.Uint16(data[off:]))
				} else {
					v = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
				}
				c[ch] = unitToUint16(v)
			}
			img.SetNRGBA64(i%width, i/width, color.NRGBA64{R: c[0], G: c[1], B: c[2], A: c[3]})
		}
		return img, nil
	}
}

// Unpad copies rows from a buffer whose rows are stride bytes apart into dst
// with tightly packed rows of rowBytes. dst must hold rowBytes*rows bytes.
func Unpad(dst, src []byte, rowBytes, stride, rows int) {
	if stride == rowBytes {
		copy(dst, src[:rowBytes*rows])
		return
	}
	for y := 0; y < rows; y++ {
		copy(dst[y*rowBytes:(y+1)*rowBytes], src[y*stride:y*stride+rowBytes])
	}
}
