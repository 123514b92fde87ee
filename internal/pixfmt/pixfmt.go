// Package pixfmt repacks raw decoder output into tightly packed RGB888.
//
// Decoders hand out rows aligned to their own stride (GStreamer pads RGB rows
// to 4 bytes) and sometimes a different channel order. Consumers of this
// driver expect exactly Width × Height × 3 bytes, R first, no row padding.
package pixfmt

import (
	"errors"
	"fmt"
	"strings"
)

// Format identifies a packed 8-bit pixel layout.
type Format int

const (
	// FormatUnknown is the zero value
	FormatUnknown Format = iota
	// FormatRGB is 3 bytes per pixel, R G B
	FormatRGB
	// FormatBGR is 3 bytes per pixel, B G R
	FormatBGR
	// FormatRGBA is 4 bytes per pixel, alpha ignored
	FormatRGBA
	// FormatBGRA is 4 bytes per pixel, alpha ignored
	FormatBGRA
	// FormatRGBx is 4 bytes per pixel, padding byte last
	FormatRGBx
	// FormatBGRx is 4 bytes per pixel, padding byte last
	FormatBGRx
	// FormatGray8 is 1 byte per pixel luminance
	FormatGray8
)

// ErrGeometry is returned when the buffer does not match the declared size.
var ErrGeometry = errors.New("pixfmt: buffer does not match geometry")

// ErrUnsupported is returned for layouts this package cannot repack.
var ErrUnsupported = errors.New("pixfmt: unsupported format")

// ParseFormat maps a GStreamer video/x-raw format name onto a Format.
func ParseFormat(name string) Format {
	switch strings.ToUpper(name) {
	case "RGB":
		return FormatRGB
	case "BGR":
		return FormatBGR
	case "RGBA":
		return FormatRGBA
	case "BGRA":
		return FormatBGRA
	case "RGBX":
		return FormatRGBx
	case "BGRX":
		return FormatBGRx
	case "GRAY8":
		return FormatGray8
	default:
		return FormatUnknown
	}
}

// String returns the GStreamer name of the format.
func (f Format) String() string {
	switch f {
	case FormatRGB:
		return "RGB"
	case FormatBGR:
		return "BGR"
	case FormatRGBA:
		return "RGBA"
	case FormatBGRA:
		return "BGRA"
	case FormatRGBx:
		return "RGBx"
	case FormatBGRx:
		return "BGRx"
	case FormatGray8:
		return "GRAY8"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns the pixel size of the format, 0 if unknown.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGB, FormatBGR:
		return 3
	case FormatRGBA, FormatBGRA, FormatRGBx, FormatBGRx:
		return 4
	case FormatGray8:
		return 1
	default:
		return 0
	}
}

// MinStride returns the smallest row stride for width pixels of f.
func MinStride(f Format, width int) int {
	return width * f.BytesPerPixel()
}

// InferStride guesses the row stride from the buffer size.
//
// When the buffer divides evenly into height rows of at least MinStride bytes,
// that row length is the stride. Otherwise the packed stride is returned and
// ToRGB888 will reject the buffer.
func InferStride(f Format, width, height, size int) int {
	min := MinStride(f, width)
	if height <= 0 || size%height != 0 {
		return min
	}
	if stride := size / height; stride >= min {
		return stride
	}
	return min
}

// ToRGB888 converts data laid out as f with the given row stride into packed RGB888.
//
// If data is already packed RGB it is returned as is (no copy).
func ToRGB888(f Format, width, height, stride int, data []byte) ([]byte, error) {
	bpp := f.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, f)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrGeometry, width, height)
	}
	if stride == 0 {
		stride = width * bpp
	}
	if stride < width*bpp {
		return nil, fmt.Errorf("%w: stride %d < %d", ErrGeometry, stride, width*bpp)
	}
	// The last row may omit its padding.
	need := stride*(height-1) + width*bpp
	if len(data) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d for %dx%d %s",
			ErrGeometry, len(data), need, width, height, f)
	}

	packed := width * 3
	if f == FormatRGB && stride == packed && len(data) == packed*height {
		return data, nil
	}

	out := make([]byte, packed*height)
	for y := 0; y < height; y++ {
		src := data[y*stride : y*stride+width*bpp]
		dst := out[y*packed : (y+1)*packed]

		switch f {
		case FormatRGB:
			copy(dst, src)
		case FormatBGR:
			for x := 0; x < width; x++ {
				dst[x*3+0] = src[x*3+2]
				dst[x*3+1] = src[x*3+1]
				dst[x*3+2] = src[x*3+0]
			}
		case FormatRGBA, FormatRGBx:
			for x := 0; x < width; x++ {
				dst[x*3+0] = src[x*4+0]
				dst[x*3+1] = src[x*4+1]
				dst[x*3+2] = src[x*4+2]
			}
		case FormatBGRA, FormatBGRx:
			for x := 0; x < width; x++ {
				dst[x*3+0] = src[x*4+2]
				dst[x*3+1] = src[x*4+1]
				dst[x*3+2] = src[x*4+0]
			}
		case FormatGray8:
			for x := 0; x < width; x++ {
				dst[x*3+0] = src[x]
				dst[x*3+1] = src[x]
				dst[x*3+2] = src[x]
			}
		}
	}

	return out, nil
}
