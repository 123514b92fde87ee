//go:build integration
// +build integration

package publish

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/message"
)

func startNATSContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10-alpine",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	return container, fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestIntegration_NATSPublisher(t *testing.T) {
	ctx := context.Background()
	container, url := startNATSContainer(ctx, t)
	defer container.Terminate(ctx)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	received := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("CAMERA_RGB", received)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub := NewNATSPublisher(NATSConfig{URL: url})
	require.NoError(t, pub.Connect(ctx))
	defer pub.Close(ctx)

	msg := &message.ImageRGB888{
		Header: message.Header{Timestamp: time.Now(), EntityPath: "/camera/10.0.0.5/stream1"},
		Width:  1,
		Height: 1,
		Data:   []byte{1, 2, 3},
	}
	require.NoError(t, pub.Publish(ctx, msg))

	select {
	case m := <-received:
		got, err := message.Decode(m.Data)
		require.NoError(t, err)
		assert.Equal(t, "/camera/10.0.0.5/stream1", got.Header.EntityPath)
		assert.Equal(t, []byte{1, 2, 3}, got.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	assert.Equal(t, uint64(1), pub.Stats().Published)
	t.Logf("✅ frame delivered over %s", url)
}
