package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/camera"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/decoder"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/message"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/pixfmt"
)

// recordingPublisher keeps every published message.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []*message.ImageRGB888
	delay    time.Duration
	err      error
	closed   bool
}

func (r *recordingPublisher) Publish(ctx context.Context, msg *message.ImageRGB888) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingPublisher) Close(context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recordingPublisher) Messages() []*message.ImageRGB888 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*message.ImageRGB888(nil), r.messages...)
}

// gatedSource hands out one scripted step per value received on release.
type gatedSource struct {
	steps   []decoder.Step
	release chan struct{}
	next    int
}

func newGatedSource(steps ...decoder.Step) *gatedSource {
	return &gatedSource{steps: steps, release: make(chan struct{})}
}

func (g *gatedSource) Open(context.Context) error { return nil }

func (g *gatedSource) Next(ctx context.Context) (decoder.Unit, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return decoder.Unit{}, ctx.Err()
	}
	step := g.steps[g.next]
	g.next++
	return step.Unit, step.Err
}

func (g *gatedSource) Close() error { return nil }

// unit returns a 1x1 RGB unit whose red channel is tag.
func unit(index int, tag byte) decoder.Unit {
	return decoder.Unit{
		StreamIndex: index,
		Width:       1,
		Height:      1,
		Format:      pixfmt.FormatRGB,
		Data:        []byte{tag, 0, 0},
	}
}

func testEndpoint(t *testing.T, host string, index int) camera.Endpoint {
	t.Helper()
	ep, err := camera.NewEndpoint(host, 554, "admin", "secret", "stream1", index)
	require.NoError(t, err)
	return ep
}
