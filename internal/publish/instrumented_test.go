package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/message"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/metrics"
)

type stubPublisher struct {
	err    error
	calls  int
	closed bool
}

func (s *stubPublisher) Publish(_ context.Context, _ *message.ImageRGB888) error {
	s.calls++
	return s.err
}

func (s *stubPublisher) Close(_ context.Context) error {
	s.closed = true
	return nil
}

func TestInstrumented(t *testing.T) {
	m := metrics.New()
	stub := &stubPublisher{}
	p := NewInstrumented(stub, "stub", m)

	msg := testImage("/camera/10.0.0.5")
	assert.NoError(t, p.Publish(context.Background(), msg))
	assert.NoError(t, p.Publish(context.Background(), msg))

	stub.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), msg))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesPublished.WithLabelValues("/camera/10.0.0.5", "stub")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishErrors.WithLabelValues("/camera/10.0.0.5", "stub")))
	assert.Equal(t, 3, stub.calls)

	assert.NoError(t, p.Close(context.Background()))
	assert.True(t, stub.closed)
}
