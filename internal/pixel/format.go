// Package pixel describes the readback pixel formats understood by the
// recorder and converts raw readback bytes into Go images.
package pixel

import "github.com/gogpu/gputypes"

// Info contains metadata about a readback pixel format.
type Info struct {
	// BytesPerPixel is the number of bytes per pixel.
	BytesPerPixel int

	// Channels is the number of color channels.
	Channels int

	// HasAlpha indicates if the format has an alpha channel.
	HasAlpha bool

	// IsFloat indicates HDR float storage (half or full precision).
	IsFloat bool

	// BitsPerChannel is the number of bits per color channel.
	BitsPerChannel int

	// SwapRB is set for BGRA-ordered formats.
	SwapRB bool
}

// infoTable lists the formats a readback buffer may carry.
var infoTable = map[gputypes.TextureFormat]Info{
	gputypes.TextureFormatR8Unorm: {
		BytesPerPixel:  1,
		Channels:       1,
		BitsPerChannel: 8,
	},
	gputypes.TextureFormatR32Float: {
		BytesPerPixel:  4,
		Channels:       1,
		IsFloat:        true,
		BitsPerChannel: 32,
	},
	gputypes.TextureFormatRGBA8Unorm: {
		BytesPerPixel:  4,
		Channels:       4,
		HasAlpha:       true,
		BitsPerChannel: 8,
	},
	gputypes.TextureFormatRGBA8UnormSrgb: {
		BytesPerPixel:  4,
		Channels:       4,
		HasAlpha:       true,
		BitsPerChannel: 8,
	},
	gputypes.TextureFormatBGRA8Unorm: {
		BytesPerPixel:  4,
		Channels:       4,
		HasAlpha:       true,
		BitsPerChannel: 8,
		SwapRB:         true,
	},
	gputypes.TextureFormatBGRA8UnormSrgb: {
		BytesPerPixel:  4,
		Channels:       4,
		HasAlpha:       true,
		BitsPerChannel: 8,
		SwapRB:         true,
	},
	gputypes.TextureFormatRGBA16Float: {
		BytesPerPixel:  8,
		Channels:       4,
		HasAlpha:       true,
		IsFloat:        true,
		BitsPerChannel: 16,
	},
	gputypes.TextureFormatRGBA32Float: {
		BytesPerPixel:  16,
		Channels:       4,
		HasAlpha:       true,
		IsFloat:        true,
		BitsPerChannel: 32,
	},
}

// Lookup returns the Info for format and whether the format is supported.
func Lookup(format gputypes.TextureFormat) (Info, bool) {
	info, ok := infoTable[format]
	return info, ok
}

// Supported reports whether format can be read back and decoded.
func Supported(format gputypes.TextureFormat) bool {
	_, ok := infoTable[format]
	return ok
}

// BytesPerPixel returns the pixel size of format, or 0 if unsupported.
func BytesPerPixel(format gputypes.TextureFormat) int {
	return infoTable[format].BytesPerPixel
}

// RowBytes calculates the number of bytes needed for a tightly packed row.
func RowBytes(width int, format gputypes.TextureFormat) int {
	return width * BytesPerPixel(format)
}

// ImageBytes calculates the total number of bytes needed for an image.
// Returns 0 for unsupported formats or non-positive dimensions.
func ImageBytes(width, height int, format gputypes.TextureFormat) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	return RowBytes(width, format) * height
}

// AlignedRowBytes rounds the packed row size up to align bytes. GPU
// texture-to-buffer copies require rows aligned to 256 bytes.
func AlignedRowBytes(width int, format gputypes.TextureFormat, align int) int {
	row := RowBytes(width, format)
	if align <= 1 {
		return row
	}
	return (row + align - 1) / align * align
}
