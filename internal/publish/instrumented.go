package publish

import (
	"context"
	"time"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/message"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/metrics"
)

// Instrumented wraps a Publisher and records outcome and latency of every
// publish in the Prometheus collectors.
type Instrumented struct {
	next      Publisher
	transport string
	metrics   *metrics.Metrics
}

// NewInstrumented decorates next. transport labels the metrics (mqtt, nats, ...).
func NewInstrumented(next Publisher, transport string, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, transport: transport, metrics: m}
}

// Publish forwards to the wrapped publisher.
func (i *Instrumented) Publish(ctx context.Context, msg *message.ImageRGB888) error {
	start := time.Now()
	err := i.next.Publish(ctx, msg)
	i.metrics.PublishDuration.WithLabelValues(i.transport).Observe(time.Since(start).Seconds())

	if err != nil {
		i.metrics.PublishErrors.WithLabelValues(msg.Header.EntityPath, i.transport).Inc()
		return err
	}
	i.metrics.FramesPublished.WithLabelValues(msg.Header.EntityPath, i.transport).Inc()
	return nil
}

// Close closes the wrapped publisher.
func (i *Instrumented) Close(ctx context.Context) error {
	return i.next.Close(ctx)
}
