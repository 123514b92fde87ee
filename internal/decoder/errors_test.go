package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		debug string
		want  ErrorCategory
	}{
		{"auth 401", "Unauthorized", "RTSP 401", ErrCategoryAuth},
		{"auth wins over network", "Could not connect", "bad password", ErrCategoryAuth},
		{"codec", "Internal data stream error", "not negotiated", ErrCategoryCodec},
		{"missing plugin", "Your GStreamer installation is missing a plug-in", "missing plugin: h265", ErrCategoryCodec},
		{"network timeout", "Could not open resource for reading", "timeout", ErrCategoryNetwork},
		{"network refused", "Connection refused", "", ErrCategoryNetwork},
		{"unknown", "something odd", "", ErrCategoryUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyMessage(tc.msg, tc.debug)
			assert.Equal(t, tc.want, got)
			t.Logf("✅ %q → %s", tc.msg, got)
		})
	}
}

func TestClassifyGStreamerError_Nil(t *testing.T) {
	assert.Equal(t, ErrCategoryUnknown, ClassifyGStreamerError(nil))
}

func TestSessionError(t *testing.T) {
	err := sessionError(ErrCategoryNetwork, "connection refused", false)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "[network]")

	err = sessionError(ErrCategoryCodec, "decode failed", true)
	assert.ErrorIs(t, err, ErrSession)
	assert.NotErrorIs(t, err, ErrConnection)
}

func TestErrorCategoryString(t *testing.T) {
	assert.Equal(t, "network", ErrCategoryNetwork.String())
	assert.Equal(t, "codec", ErrCategoryCodec.String())
	assert.Equal(t, "auth", ErrCategoryAuth.String())
	assert.Equal(t, "unknown", ErrorCategory(42).String())
}
