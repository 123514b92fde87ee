package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/message"
)

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	URL            string
	Subject        string
	ClientName     string
	ConnectTimeout time.Duration
	FlushTimeout   time.Duration
	MaxReconnects  int
	ReconnectWait  time.Duration
}

// NATSPublisher publishes frames as core NATS messages.
type NATSPublisher struct {
	cfg  NATSConfig
	conn *nats.Conn

	published atomic.Uint64
	errors    atomic.Uint64
}

// NewNATSPublisher creates a publisher; call Connect before Publish.
func NewNATSPublisher(cfg NATSConfig) *NATSPublisher {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = TopicCameraRGB
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1 // forever
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	return &NATSPublisher{cfg: cfg}
}

// Connect dials the NATS server, bounded by ctx and ConnectTimeout.
func (p *NATSPublisher) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Timeout(p.cfg.ConnectTimeout),
		nats.MaxReconnects(p.cfg.MaxReconnects),
		nats.ReconnectWait(p.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("publish: nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("publish: nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			slog.Debug("publish: nats connection closed")
		}),
	}
	if p.cfg.ClientName != "" {
		opts = append(opts, nats.Name(p.cfg.ClientName))
	}

	slog.Info("publish: connecting to nats", "url", p.cfg.URL, "subject", p.cfg.Subject)

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(p.cfg.URL, opts...)
		if err != nil {
			connectDone <- err
			return
		}
		p.conn = conn
		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("nats connection cancelled: %w", ctx.Err())
	}

	return nil
}

// Publish encodes msg and publishes it on the configured subject.
//
// The connection is flushed so a dead server surfaces as an error here
// instead of silently buffering frames.
func (p *NATSPublisher) Publish(ctx context.Context, msg *message.ImageRGB888) error {
	if p.conn == nil || !p.conn.IsConnected() {
		p.errors.Add(1)
		return ErrNotConnected
	}

	payload, err := message.Encode(msg)
	if err != nil {
		p.errors.Add(1)
		return err
	}

	if err := p.conn.Publish(p.cfg.Subject, payload); err != nil {
		p.errors.Add(1)
		return fmt.Errorf("nats publish failed: %w", err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, p.cfg.FlushTimeout)
	defer cancel()
	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		p.errors.Add(1)
		return fmt.Errorf("nats flush failed: %w", err)
	}

	p.published.Add(1)
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close(ctx context.Context) error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("nats drain failed: %w", err)
	}
	slog.Info("publish: nats connection drained")
	return nil
}

// Stats returns publisher statistics
func (p *NATSPublisher) Stats() Stats {
	return Stats{
		Connected: p.conn != nil && p.conn.IsConnected(),
		Published: p.published.Load(),
		Errors:    p.errors.Load(),
	}
}
