package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// GStreamerConfig configures a GStreamer backed Source.
type GStreamerConfig struct {
	// URL is the full rtsp:// URL including credentials
	URL string
	// LogURL is the URL written to logs (credentials redacted)
	LogURL string
	// Latency of the rtspsrc jitterbuffer (default 200ms)
	Latency time.Duration
	// TCPTimeout bounds rtspsrc socket operations (default 10s)
	TCPTimeout time.Duration
}

// Stats is a snapshot of decoder counters.
type Stats struct {
	FramesDecoded uint64
	BytesRead     uint64
	VideoStreams  int
	Playing       bool
}

// GStreamerSource decodes an RTSP stream through a GStreamer pipeline.
//
// Every video sub-stream rtspsrc announces gets its own decode branch; the
// branch ordinal is the Unit's StreamIndex. Transport is TCP only.
type GStreamerSource struct {
	cfg GStreamerConfig

	mu       sync.Mutex
	elements *PipelineElements
	branches []*Branch

	units chan result

	connected   chan struct{}
	connectOnce sync.Once

	failed   chan struct{}
	failOnce sync.Once
	failErr  error

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	playing       atomic.Bool
	framesDecoded atomic.Uint64
	bytesRead     atomic.Uint64
}

// NewGStreamerSource creates a source; nothing is opened until Open.
func NewGStreamerSource(cfg GStreamerConfig) *GStreamerSource {
	if cfg.Latency <= 0 {
		cfg.Latency = 200 * time.Millisecond
	}
	if cfg.TCPTimeout <= 0 {
		cfg.TCPTimeout = 10 * time.Second
	}
	if cfg.LogURL == "" {
		cfg.LogURL = "rtsp://<redacted>"
	}

	return &GStreamerSource{
		cfg:       cfg,
		units:     make(chan result, 1),
		connected: make(chan struct{}),
		failed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Open builds the pipeline and blocks until rtspsrc has negotiated a video
// stream, the pipeline fails, or ctx expires. Every failure wraps ErrConnection.
func (s *GStreamerSource) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.elements != nil {
		s.mu.Unlock()
		return fmt.Errorf("decoder: source already opened")
	}

	elements, err := CreatePipeline(PipelineConfig{
		RTSPURL:    s.cfg.URL,
		Latency:    s.cfg.Latency,
		TCPTimeout: s.cfg.TCPTimeout,
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	s.elements = elements
	s.mu.Unlock()

	elements.RTSPSrc.Connect("pad-added", func(self *gst.Element, pad *gst.Pad) {
		s.onSourcePad(pad)
	})
	elements.RTSPSrc.Connect("no-more-pads", func(self *gst.Element) {
		s.mu.Lock()
		n := len(s.branches)
		s.mu.Unlock()
		slog.Info("decoder: all streams announced", "video_streams", n, "url", s.cfg.LogURL)
	})

	s.wg.Add(1)
	go s.monitorBus()

	slog.Info("decoder: opening stream", "url", s.cfg.LogURL, "latency", s.cfg.Latency)

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		s.Close()
		return fmt.Errorf("%w: failed to start pipeline: %v", ErrConnection, err)
	}

	select {
	case <-s.connected:
		slog.Info("decoder: stream connected", "url", s.cfg.LogURL)
		return nil
	case <-s.failed:
		s.Close()
		if errors.Is(s.failErr, io.EOF) {
			return fmt.Errorf("%w: stream ended before handshake", ErrConnection)
		}
		return s.failErr
	case <-ctx.Done():
		s.Close()
		return fmt.Errorf("%w: handshake: %v", ErrConnection, ctx.Err())
	}
}

// Next blocks until the next decoded unit.
//
// Units already handed over by GStreamer are returned before a pending
// end-of-stream or session fault.
func (s *GStreamerSource) Next(ctx context.Context) (Unit, error) {
	s.mu.Lock()
	opened := s.elements != nil
	s.mu.Unlock()
	if !opened {
		return Unit{}, ErrNotOpen
	}

	select {
	case r := <-s.units:
		return r.unit, r.err
	case <-s.failed:
		select {
		case r := <-s.units:
			return r.unit, r.err
		default:
			return Unit{}, s.failErr
		}
	case <-s.done:
		return Unit{}, fmt.Errorf("%w: closed", ErrNotOpen)
	case <-ctx.Done():
		return Unit{}, ctx.Err()
	}
}

// Close tears the pipeline down. Safe to call more than once.
func (s *GStreamerSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// Release streaming threads blocked in OnNewSample first, otherwise
		// the NULL state change waits on them forever.
		close(s.done)

		s.mu.Lock()
		elements := s.elements
		s.mu.Unlock()

		err = DestroyPipeline(elements)
		s.wg.Wait()

		slog.Info("decoder: stream closed",
			"url", s.cfg.LogURL,
			"frames_decoded", s.framesDecoded.Load(),
		)
	})
	return err
}

// Stats returns a snapshot of the decoder counters.
func (s *GStreamerSource) Stats() Stats {
	s.mu.Lock()
	n := len(s.branches)
	s.mu.Unlock()

	return Stats{
		FramesDecoded: s.framesDecoded.Load(),
		BytesRead:     s.bytesRead.Load(),
		VideoStreams:  n,
		Playing:       s.playing.Load(),
	}
}

// onSourcePad runs on a GStreamer thread whenever rtspsrc exposes a stream.
func (s *GStreamerSource) onSourcePad(pad *gst.Pad) {
	s.mu.Lock()
	elements := s.elements
	s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	if !isVideoRTPPad(pad) {
		slog.Debug("decoder: discarding non-video stream", "pad", pad.GetName())
		if err := AttachFakeSink(elements.Pipeline, pad); err != nil {
			slog.Warn("decoder: failed to terminate non-video stream", "pad", pad.GetName(), "error", err)
		}
		return
	}

	s.mu.Lock()
	index := len(s.branches)
	branch, err := CreateBranch(elements.Pipeline, index)
	if err == nil {
		s.branches = append(s.branches, branch)
	}
	s.mu.Unlock()
	if err != nil {
		s.fail(sessionError(ErrCategoryUnknown, err.Error(), s.playing.Load()))
		return
	}

	cbctx := &CallbackContext{
		StreamIndex:   index,
		Units:         s.units,
		Done:          s.done,
		FramesDecoded: &s.framesDecoded,
		BytesRead:     &s.bytesRead,
	}
	branch.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return OnNewSample(sink, cbctx)
		},
	})
	branch.DecodeBin.Connect("pad-added", func(self *gst.Element, decoded *gst.Pad) {
		OnDecodedPadAdded(decoded, branch.Converter)
	})

	StartBranch(branch)

	if err := linkPads(pad, branch.DecodeBin.GetStaticPad("sink")); err != nil {
		s.fail(sessionError(ErrCategoryUnknown, err.Error(), s.playing.Load()))
		return
	}

	slog.Info("decoder: video stream attached", "stream_index", index, "pad", pad.GetName())

	// The first video pad means DESCRIBE/SETUP/PLAY succeeded.
	s.connectOnce.Do(func() {
		s.playing.Store(true)
		close(s.connected)
	})
}

// monitorBus polls the pipeline bus until Close.
//
// The first EOS or ERROR is terminal and recorded through fail.
func (s *GStreamerSource) monitorBus() {
	defer s.wg.Done()

	pipeline := s.elements.Pipeline
	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-s.done:
			slog.Debug("decoder: stopping bus monitor")
			return
		default:
		}

		// Poll for messages with short timeout for responsive shutdown
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("decoder: end of stream received",
				"url", s.cfg.LogURL,
				"frames_decoded", s.framesDecoded.Load(),
			)
			s.fail(io.EOF)

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGStreamerError(gerr)
			slog.Error("decoder: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"url", s.cfg.LogURL,
				"playing", s.playing.Load(),
			)
			s.fail(sessionError(category, gerr.Error(), s.playing.Load()))

		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			slog.Warn("decoder: pipeline warning",
				"warning", gerr.Error(),
				"debug", gerr.DebugString(),
			)

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				oldState, newState := msg.ParseStateChanged()
				slog.Debug("decoder: pipeline state changed", "from", oldState, "to", newState)
			}
		}
	}
}

// fail records the terminal error; only the first one is kept.
func (s *GStreamerSource) fail(err error) {
	s.failOnce.Do(func() {
		s.failErr = err
		close(s.failed)
	})
}
