package publish

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/message"
)

func TestNATSPublisher_NotConnected(t *testing.T) {
	p := NewNATSPublisher(NATSConfig{})
	err := p.Publish(context.Background(), &message.ImageRGB888{Width: 1, Height: 1, Data: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, uint64(1), p.Stats().Errors)
	assert.NoError(t, p.Close(context.Background()))
}

func TestNATSPublisher_Defaults(t *testing.T) {
	p := NewNATSPublisher(NATSConfig{})
	assert.Equal(t, TopicCameraRGB, p.cfg.Subject)
	assert.Equal(t, -1, p.cfg.MaxReconnects)
}
