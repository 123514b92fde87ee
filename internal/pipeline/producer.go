package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/decoder"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/frameslot"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/metrics"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/pixfmt"
)

// DefaultConnectTimeout bounds the RTSP handshake.
const DefaultConnectTimeout = 5 * time.Second

// ProducerConfig configures a Producer.
type ProducerConfig struct {
	// StreamIndex selects the decoder sub-stream; other units are discarded
	StreamIndex int
	// ConnectTimeout bounds Source.Open (default 5s)
	ConnectTimeout time.Duration
	// SessionPath labels logs and metrics
	SessionPath string
}

// Producer pulls decoded units from a Source, converts them to packed RGB888
// and writes them into the slot. It is the slot's only writer and closes it
// when it returns.
type Producer struct {
	cfg     ProducerConfig
	source  decoder.Source
	slot    *frameslot.Slot
	logger  *slog.Logger
	metrics *metrics.Metrics

	decoded        atomic.Uint64
	skippedIndex   atomic.Uint64
	skippedCorrupt atomic.Uint64
	lastDropped    uint64
}

// NewProducer creates a producer writing into slot. m may be nil.
func NewProducer(cfg ProducerConfig, source decoder.Source, slot *frameslot.Slot, logger *slog.Logger, m *metrics.Metrics) *Producer {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		cfg:     cfg,
		source:  source,
		slot:    slot,
		logger:  logger,
		metrics: m,
	}
}

// Run opens the source and feeds the slot until end of stream, a fatal
// decoder error or ctx cancellation.
//
// Returns nil on end of stream, ctx.Err() on cancellation, ErrConnection if
// the source could not be opened and ErrDecode on a fatal decoder fault.
func (p *Producer) Run(ctx context.Context) error {
	defer p.slot.Close()

	openCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	err := p.source.Open(openCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Error("producer: failed to open stream", "error", err, "timeout", p.cfg.ConnectTimeout)
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer p.source.Close()

	p.logger.Info("producer: stream opened", "stream_index", p.cfg.StreamIndex)

	var written uint64
	for {
		unit, err := p.source.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			p.logger.Info("producer: end of stream",
				"frames_written", written,
				"units_decoded", p.decoded.Load(),
			)
			return nil
		case errors.Is(err, decoder.ErrCorruptUnit):
			p.skipCorrupt(err)
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			p.logger.Error("producer: decoder failed", "error", err, "frames_written", written)
			return fmt.Errorf("%w: %w", ErrDecode, err)
		}

		p.decoded.Add(1)
		if p.metrics != nil {
			p.metrics.UnitsDecoded.WithLabelValues(p.cfg.SessionPath).Inc()
		}

		if unit.StreamIndex != p.cfg.StreamIndex {
			p.skippedIndex.Add(1)
			if p.metrics != nil {
				p.metrics.UnitsSkipped.WithLabelValues(p.cfg.SessionPath, "stream_index").Inc()
			}
			continue
		}

		frame, err := p.toFrame(unit)
		if err != nil {
			p.skipCorrupt(err)
			continue
		}

		p.slot.Write(frame)
		written++
		p.recordWrite()

		if written == 1 {
			p.logger.Info("producer: first frame written",
				"width", frame.Width,
				"height", frame.Height,
				"trace_id", frame.TraceID,
			)
		}
	}
}

// Stats returns decoded, index-filtered and corrupt unit counts.
func (p *Producer) Stats() (decoded, skippedIndex, skippedCorrupt uint64) {
	return p.decoded.Load(), p.skippedIndex.Load(), p.skippedCorrupt.Load()
}

// toFrame repacks a unit into an immutable RGB888 frame.
func (p *Producer) toFrame(unit decoder.Unit) (*frameslot.Frame, error) {
	stride := unit.Stride
	if stride == 0 {
		stride = pixfmt.InferStride(unit.Format, unit.Width, unit.Height, len(unit.Data))
	}

	data, err := pixfmt.ToRGB888(unit.Format, unit.Width, unit.Height, stride, unit.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", decoder.ErrCorruptUnit, err)
	}

	ts := unit.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &frameslot.Frame{
		Width:       unit.Width,
		Height:      unit.Height,
		Data:        data,
		Timestamp:   ts,
		StreamIndex: unit.StreamIndex,
		TraceID:     uuid.New().String(),
	}, nil
}

func (p *Producer) skipCorrupt(err error) {
	n := p.skippedCorrupt.Add(1)
	if p.metrics != nil {
		p.metrics.UnitsSkipped.WithLabelValues(p.cfg.SessionPath, "corrupt").Inc()
	}
	p.logger.Warn("producer: skipping corrupt unit", "error", err, "corrupt_total", n)
}

// recordWrite mirrors slot counters into Prometheus.
func (p *Producer) recordWrite() {
	if p.metrics == nil {
		return
	}
	p.metrics.FramesWritten.WithLabelValues(p.cfg.SessionPath).Inc()

	dropped := p.slot.Stats().Dropped
	if delta := dropped - p.lastDropped; delta > 0 {
		p.metrics.FramesDropped.WithLabelValues(p.cfg.SessionPath).Add(float64(delta))
	}
	p.lastDropped = dropped
}
