package pixfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRGB888(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		width  int
		height int
		stride int
		data   []byte
		want   []byte
	}{
		{
			name:   "packed RGB passthrough",
			format: FormatRGB, width: 2, height: 1,
			data: []byte{1, 2, 3, 4, 5, 6},
			want: []byte{1, 2, 3, 4, 5, 6},
		},
		{
			name:   "RGB with 4-byte row padding",
			format: FormatRGB, width: 1, height: 2, stride: 4,
			data: []byte{1, 2, 3, 0, 4, 5, 6, 0},
			want: []byte{1, 2, 3, 4, 5, 6},
		},
		{
			name:   "RGB last row without padding",
			format: FormatRGB, width: 1, height: 2, stride: 4,
			data: []byte{1, 2, 3, 0, 4, 5, 6},
			want: []byte{1, 2, 3, 4, 5, 6},
		},
		{
			name:   "BGR swapped",
			format: FormatBGR, width: 1, height: 1,
			data: []byte{3, 2, 1},
			want: []byte{1, 2, 3},
		},
		{
			name:   "RGBA drops alpha",
			format: FormatRGBA, width: 2, height: 1,
			data: []byte{1, 2, 3, 255, 4, 5, 6, 255},
			want: []byte{1, 2, 3, 4, 5, 6},
		},
		{
			name:   "BGRx",
			format: FormatBGRx, width: 1, height: 1,
			data: []byte{3, 2, 1, 0},
			want: []byte{1, 2, 3},
		},
		{
			name:   "GRAY8 expanded",
			format: FormatGray8, width: 2, height: 1,
			data: []byte{10, 20},
			want: []byte{10, 10, 10, 20, 20, 20},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToRGB888(tc.format, tc.width, tc.height, tc.stride, tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Len(t, got, tc.width*tc.height*3)
		})
	}
}

func TestToRGB888_Errors(t *testing.T) {
	_, err := ToRGB888(FormatUnknown, 1, 1, 0, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = ToRGB888(FormatRGB, 2, 2, 0, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrGeometry)

	_, err = ToRGB888(FormatRGB, 2, 1, 4, make([]byte, 8))
	assert.ErrorIs(t, err, ErrGeometry, "stride smaller than a row")

	_, err = ToRGB888(FormatRGB, 0, 1, 0, nil)
	assert.ErrorIs(t, err, ErrGeometry)
}

func TestInferStride(t *testing.T) {
	// 5 px wide RGB rows are padded to 16 bytes by GStreamer
	assert.Equal(t, 16, InferStride(FormatRGB, 5, 3, 48))
	assert.Equal(t, 15, InferStride(FormatRGB, 5, 3, 45))
	// uneven size falls back to packed stride
	assert.Equal(t, 15, InferStride(FormatRGB, 5, 3, 47))
	assert.Equal(t, 8, InferStride(FormatRGBA, 2, 0, 16))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatRGB, ParseFormat("RGB"))
	assert.Equal(t, FormatBGRx, ParseFormat("BGRx"))
	assert.Equal(t, FormatGray8, ParseFormat("gray8"))
	assert.Equal(t, FormatUnknown, ParseFormat("I420"))
	assert.Equal(t, "RGBx", FormatRGBx.String())
}
