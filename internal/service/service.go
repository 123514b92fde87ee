// Package service assembles the camera driver from its configuration:
// one pipeline per camera, a shared publisher and the metrics server.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/camera"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/config"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/decoder"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/metrics"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/pipeline"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/publish"
)

// Service is the running driver.
type Service struct {
	cfg       *config.Config
	metrics   *metrics.Metrics
	publisher publish.Publisher
	connect   func(ctx context.Context) error
	fleet     *pipeline.Fleet
	server    *metrics.Server
	started   time.Time
}

// New wires the driver. Nothing connects or listens until Run.
func New(cfg *config.Config) (*Service, error) {
	endpoints, err := cfg.Endpoints()
	if err != nil {
		return nil, err
	}

	policy, err := pipeline.ParsePublishErrorPolicy(cfg.Publish.ErrorPolicy)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		metrics: metrics.New(),
	}

	raw, connect, err := newPublisher(cfg)
	if err != nil {
		return nil, err
	}
	s.connect = connect
	s.publisher = publish.NewInstrumented(raw, cfg.Publish.Transport, s.metrics)

	supervisors := make([]*pipeline.Supervisor, 0, len(endpoints))
	for i, ep := range endpoints {
		logger := slog.Default().With("camera", i)
		supervisors = append(supervisors, pipeline.NewSupervisor(
			ep,
			newSource(cfg, ep),
			s.publisher,
			pipeline.Config{
				ConnectTimeout:     cfg.Camera.ConnectTimeout,
				PublishErrorPolicy: policy,
			},
			logger,
			s.metrics,
		))
	}
	s.fleet = pipeline.NewFleet(supervisors...)

	if cfg.MetricsEnabled() {
		s.server = metrics.NewServer(cfg.Metrics.Addr, s.metrics, s.fleet)
	}

	return s, nil
}

// Run connects the publisher, starts the metrics server and runs every
// pipeline until ctx is cancelled or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	s.started = time.Now()

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.Camera.ConnectTimeout)
	err := s.connect(connectCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect %s publisher: %w", s.cfg.Publish.Transport, err)
	}

	if s.server != nil {
		if err := s.server.Start(); err != nil {
			return err
		}
	}

	slog.Info("service: running",
		"cameras", len(s.fleet.Supervisors()),
		"transport", s.cfg.Publish.Transport,
		"topic", s.cfg.Publish.Topic,
		"decoder", s.cfg.Decoder.Backend,
	)

	return s.fleet.Run(ctx)
}

// Shutdown releases the publisher and stops the metrics server.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.publisher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}

	slog.Info("service: shut down", "uptime", time.Since(s.started).Round(time.Second))
	return errors.Join(errs...)
}

// Fleet returns the camera pipelines.
func (s *Service) Fleet() *pipeline.Fleet {
	return s.fleet
}

// newPublisher builds the configured transport and the function that
// brings it online.
func newPublisher(cfg *config.Config) (publish.Publisher, func(context.Context) error, error) {
	topic := publish.ResolveTopic(publish.TopicCameraRGB, map[string]string{
		publish.TopicCameraRGB: cfg.Publish.Topic,
	})

	switch cfg.Publish.Transport {
	case "mqtt":
		clientID := cfg.Publish.MQTT.ClientID
		if clientID == "" {
			clientID = "camera-rgb-" + strings.Split(uuid.New().String(), "-")[0]
		}
		p := publish.NewMQTTPublisher(publish.MQTTConfig{
			Broker:   cfg.Publish.MQTT.Broker,
			ClientID: clientID,
			Topic:    topic,
			QoS:      byte(cfg.Publish.MQTT.QoS),
		})
		return p, p.Connect, nil

	case "nats":
		p := publish.NewNATSPublisher(publish.NATSConfig{
			URL:        cfg.Publish.NATS.URL,
			Subject:    topic,
			ClientName: "camera-rgb",
		})
		return p, p.Connect, nil

	case "websocket":
		p := publish.NewWebSocketPublisher(publish.WebSocketConfig{
			Addr:  cfg.Publish.WebSocket.Addr,
			Topic: topic,
		})
		return p, func(context.Context) error { return p.Start() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown publish transport %q", cfg.Publish.Transport)
	}
}

func newSource(cfg *config.Config, ep camera.Endpoint) decoder.Source {
	if cfg.Decoder.Backend == "mock" {
		return decoder.NewMockSource(decoder.MockConfig{
			Width:  640,
			Height: 480,
			FPS:    15,
		})
	}
	return decoder.NewGStreamerSource(decoder.GStreamerConfig{
		URL:     ep.URL(),
		LogURL:  ep.RedactedURL(),
		Latency: cfg.Decoder.Latency,
	})
}
