package decoder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/pixfmt"
)

// Step is one scripted result of MockSource.Next.
type Step struct {
	Unit Unit
	Err  error
}

// MockConfig configures a MockSource.
type MockConfig struct {
	Width  int
	Height int
	// FPS paces Next; 0 returns units as fast as they are asked for
	FPS int
	// Streams is the number of interleaved sub-streams (default 1)
	Streams int
	// Limit ends the stream with io.EOF after this many units, 0 = endless
	Limit int
	// OpenErr, if set, is returned by Open
	OpenErr error
	// Script replaces the synthetic generator when non-empty; after the
	// last step Next returns io.EOF
	Script []Step
}

// MockSource generates synthetic frames without a camera.
//
// Frames are a moving RGB gradient so consecutive pictures differ. Used by
// tests and by the mock decoder backend.
type MockSource struct {
	cfg MockConfig

	mu      sync.Mutex
	opened  bool
	closed  bool
	seq     uint64
	emitted int
	next    time.Time
}

// NewMockSource creates a new mock decoder source
func NewMockSource(cfg MockConfig) *MockSource {
	if cfg.Width <= 0 {
		cfg.Width = 64
	}
	if cfg.Height <= 0 {
		cfg.Height = 48
	}
	if cfg.Streams <= 0 {
		cfg.Streams = 1
	}
	return &MockSource{cfg: cfg}
}

// NewScriptedSource returns a MockSource that replays steps in order.
func NewScriptedSource(steps ...Step) *MockSource {
	return NewMockSource(MockConfig{Script: steps})
}

// Open marks the source open, or fails with the configured error.
func (m *MockSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if m.cfg.OpenErr != nil {
		return m.cfg.OpenErr
	}

	m.mu.Lock()
	m.opened = true
	m.next = time.Now()
	m.mu.Unlock()

	slog.Info("decoder: mock source opened",
		"width", m.cfg.Width,
		"height", m.cfg.Height,
		"fps", m.cfg.FPS,
		"streams", m.cfg.Streams,
		"scripted", len(m.cfg.Script) > 0,
	)
	return nil
}

// Next returns the next scripted step or synthetic unit.
func (m *MockSource) Next(ctx context.Context) (Unit, error) {
	m.mu.Lock()
	if !m.opened || m.closed {
		m.mu.Unlock()
		return Unit{}, ErrNotOpen
	}

	if len(m.cfg.Script) > 0 {
		defer m.mu.Unlock()
		if m.emitted >= len(m.cfg.Script) {
			return Unit{}, io.EOF
		}
		step := m.cfg.Script[m.emitted]
		m.emitted++
		return step.Unit, step.Err
	}

	if m.cfg.Limit > 0 && m.emitted >= m.cfg.Limit {
		m.mu.Unlock()
		return Unit{}, io.EOF
	}

	var wait time.Duration
	if m.cfg.FPS > 0 {
		m.next = m.next.Add(time.Second / time.Duration(m.cfg.FPS))
		wait = time.Until(m.next)
	}
	seq := m.seq
	m.seq++
	m.emitted++
	m.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Unit{}, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return Unit{}, err
	}

	return m.createUnit(seq), nil
}

// Close stops the source. Safe to call more than once.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed && m.opened {
		slog.Info("decoder: mock source closed", "units_emitted", m.emitted)
	}
	m.closed = true
	return nil
}

// Emitted returns how many results Next has produced.
func (m *MockSource) Emitted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emitted
}

// createUnit creates a synthetic packed RGB unit
func (m *MockSource) createUnit(seq uint64) Unit {
	w, h := m.cfg.Width, m.cfg.Height
	data := make([]byte, w*h*3)
	shift := byte(seq)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			data[i+0] = byte(x) + shift
			data[i+1] = byte(y) + shift
			data[i+2] = shift
		}
	}

	return Unit{
		StreamIndex: int(seq % uint64(m.cfg.Streams)),
		Width:       w,
		Height:      h,
		Format:      pixfmt.FormatRGB,
		Data:        data,
		Timestamp:   time.Now(),
	}
}
