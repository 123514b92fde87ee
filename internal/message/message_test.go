package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	in := &ImageRGB888{
		Header: Header{
			Timestamp:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			ReferenceID: "ref-1",
			EntityPath:  "/camera/10.0.0.5/stream1",
		},
		Width:  2,
		Height: 1,
		Data:   []byte{1, 2, 3, 4, 5, 6},
	}

	payload, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, in.Header.EntityPath, out.Header.EntityPath)
	assert.True(t, in.Header.Timestamp.Equal(out.Header.Timestamp))
	assert.Equal(t, in.Data, out.Data)
}

func TestDecode_RejectsBadGeometry(t *testing.T) {
	payload, err := Encode(&ImageRGB888{Width: 2, Height: 2, Data: []byte{1, 2, 3}})
	require.NoError(t, err)

	_, err = Decode(payload)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Decode([]byte{0xc1})
	assert.Error(t, err)
}
