package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/frameslot"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/message"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/publish"
)

// PublishErrorPolicy decides what a failed publish does to the pipeline.
type PublishErrorPolicy int

const (
	// PolicyContinue logs and counts the failure, then waits for the next frame
	PolicyContinue PublishErrorPolicy = iota
	// PolicyFatal tears the pipeline down with ErrPublish
	PolicyFatal
)

// ParsePublishErrorPolicy parses "continue" or "fatal" (case-insensitive).
func ParsePublishErrorPolicy(s string) (PublishErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue":
		return PolicyContinue, nil
	case "fatal":
		return PolicyFatal, nil
	default:
		return PolicyContinue, fmt.Errorf("unknown publish error policy %q (want continue|fatal)", s)
	}
}

func (p PublishErrorPolicy) String() string {
	if p == PolicyFatal {
		return "fatal"
	}
	return "continue"
}

// Consumer reads the newest frame from the slot and publishes it.
//
// It publishes exactly once per observed slot version, in increasing version
// order; frames overwritten in between are never seen.
type Consumer struct {
	slot        *frameslot.Slot
	publisher   publish.Publisher
	sessionPath string
	policy      PublishErrorPolicy
	logger      *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewConsumer creates a consumer stamping messages with sessionPath.
func NewConsumer(slot *frameslot.Slot, publisher publish.Publisher, sessionPath string, policy PublishErrorPolicy, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		slot:        slot,
		publisher:   publisher,
		sessionPath: sessionPath,
		policy:      policy,
		logger:      logger,
	}
}

// Run publishes until the slot reports end of stream (nil), ctx is
// cancelled (ctx.Err()) or a publish fails under PolicyFatal (ErrPublish).
func (c *Consumer) Run(ctx context.Context) error {
	var lastSeen uint64

	for {
		frame, version, err := c.slot.ReadLatest(ctx, lastSeen)
		if errors.Is(err, frameslot.ErrClosed) {
			c.logger.Info("consumer: end of stream",
				"published", c.published.Load(),
				"failed", c.failed.Load(),
			)
			return nil
		}
		if err != nil {
			return err
		}
		lastSeen = version

		msg := &message.ImageRGB888{
			Header: message.Header{
				Timestamp:   time.Now(),
				ReferenceID: frame.TraceID,
				EntityPath:  c.sessionPath,
			},
			Width:  frame.Width,
			Height: frame.Height,
			Data:   frame.Data,
		}

		if err := c.publisher.Publish(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n := c.failed.Add(1)
			if c.policy == PolicyFatal {
				c.logger.Error("consumer: publish failed", "error", err, "version", version)
				return fmt.Errorf("%w: %w", ErrPublish, err)
			}
			c.logger.Warn("consumer: publish failed, continuing",
				"error", err,
				"version", version,
				"failed_total", n,
			)
			continue
		}

		if c.published.Add(1) == 1 {
			c.logger.Info("consumer: first frame published", "trace_id", frame.TraceID)
		}
	}
}

// Published returns the number of successfully published messages.
func (c *Consumer) Published() uint64 {
	return c.published.Load()
}

// Failed returns the number of failed publishes.
func (c *Consumer) Failed() uint64 {
	return c.failed.Load()
}
