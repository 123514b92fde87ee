package publish

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"localhost:1883", "tcp://localhost:1883"},
		{"tcp://broker:1883", "tcp://broker:1883"},
		{"ssl://broker:8883", "ssl://broker:8883"},
		{"ws://broker:9001/mqtt", "ws://broker:9001/mqtt"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, brokerURL(tc.in))
		})
	}
}

func TestMQTTPublisher_NotConnected(t *testing.T) {
	p := NewMQTTPublisher(MQTTConfig{Broker: "localhost:1883"})
	assert.Equal(t, TopicCameraRGB, p.cfg.Topic)
	assert.Equal(t, 5*time.Second, p.cfg.ConnectTimeout)

	err := p.Publish(context.Background(), testImage("/camera/a"))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, uint64(1), p.Stats().Errors)
	assert.NoError(t, p.Close(context.Background()))
}

func TestMQTTPublisher_ConnectTimeout(t *testing.T) {
	// Nothing listens on port 1 of the loopback interface.
	p := NewMQTTPublisher(MQTTConfig{Broker: "127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond})
	err := p.Connect(context.Background())
	assert.Error(t, err)
	_ = p.Close(context.Background())
}
