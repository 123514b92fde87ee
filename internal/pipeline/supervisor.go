// Package pipeline wires a decoder source, the latest-frame slot and a
// publisher into one supervised camera pipeline.
//
// Architecture:
//
//	Source → Producer → Slot → Consumer → Publisher
//
// The producer and the consumer run concurrently at independent rates and
// share nothing but the slot. The first of them to fail cancels the other.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/camera"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/decoder"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/frameslot"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/metrics"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/publish"
)

// State is the lifecycle state of a pipeline.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return metrics.StateFailed
	default:
		return "unknown"
	}
}

var stateNames = []string{"idle", "running", "stopped", metrics.StateFailed}

// Config configures a Supervisor.
type Config struct {
	ConnectTimeout     time.Duration
	PublishErrorPolicy PublishErrorPolicy
}

// Supervisor owns one camera pipeline: Idle → Running → {Stopped | Failed}.
//
// There is no retry. A failed pipeline stays failed; restarting is left to
// whoever runs the process.
type Supervisor struct {
	endpoint    camera.Endpoint
	sessionPath string
	slot        *frameslot.Slot
	producer    *Producer
	consumer    *Consumer
	logger      *slog.Logger
	metrics     *metrics.Metrics

	state atomic.Int32

	mu  sync.Mutex
	err error
}

// NewSupervisor assembles the pipeline for endpoint. m may be nil.
func NewSupervisor(endpoint camera.Endpoint, source decoder.Source, publisher publish.Publisher, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	// Computed once; every message of this pipeline carries the same path.
	sessionPath := endpoint.SessionPath()
	logger = logger.With("session_path", sessionPath)

	slot := frameslot.New()
	s := &Supervisor{
		endpoint:    endpoint,
		sessionPath: sessionPath,
		slot:        slot,
		logger:      logger,
		metrics:     m,
	}

	s.producer = NewProducer(ProducerConfig{
		StreamIndex:    endpoint.StreamIndex,
		ConnectTimeout: cfg.ConnectTimeout,
		SessionPath:    sessionPath,
	}, source, slot, logger, m)
	s.consumer = NewConsumer(slot, publisher, sessionPath, cfg.PublishErrorPolicy, logger)

	if m != nil {
		m.SetState(sessionPath, stateNames, StateIdle.String())
	}
	return s
}

// Run runs producer and consumer until both finish.
//
// Returns nil when the pipeline stopped (end of stream or ctx cancelled) and
// the first task error when it failed.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	s.publishState(StateRunning)

	s.logger.Info("pipeline: starting",
		"url", s.endpoint.RedactedURL(),
		"stream_index", s.endpoint.StreamIndex,
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.producer.Run(gctx)
	})
	g.Go(func() error {
		return s.consumer.Run(gctx)
	})
	err := g.Wait()

	stats := s.slot.Stats()
	attrs := []any{
		"uptime", time.Since(start).Round(time.Millisecond),
		"frames_written", stats.Writes,
		"frames_dropped", stats.Dropped,
		"frames_published", s.consumer.Published(),
	}

	if err == nil || (ctx.Err() != nil && errors.Is(err, context.Canceled)) {
		s.setState(StateStopped, nil)
		s.logger.Info("pipeline: stopped", attrs...)
		return nil
	}

	s.setState(StateFailed, err)
	s.logger.Error("pipeline: failed", append(attrs, "error", err)...)
	return err
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Err returns the error that failed the pipeline, nil otherwise.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SessionPath returns the identity attached to every published message.
func (s *Supervisor) SessionPath() string {
	return s.sessionPath
}

// Status returns the health view of this pipeline.
func (s *Supervisor) Status() metrics.CameraStatus {
	stats := s.slot.Stats()
	st := metrics.CameraStatus{
		SessionPath:     s.sessionPath,
		State:           s.State().String(),
		FramesWritten:   stats.Writes,
		FramesDropped:   stats.Dropped,
		FramesPublished: s.consumer.Published(),
	}
	if err := s.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (s *Supervisor) setState(state State, err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.state.Store(int32(state))
	s.publishState(state)
}

func (s *Supervisor) publishState(state State) {
	if s.metrics != nil {
		s.metrics.SetState(s.sessionPath, stateNames, state.String())
	}
}
