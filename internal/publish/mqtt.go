package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/message"
)

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Broker         string // host:port or full URL
	ClientID       string
	Topic          string
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// MQTTPublisher publishes frames to an MQTT broker
type MQTTPublisher struct {
	cfg    MQTTConfig
	client mqtt.Client

	mu        sync.RWMutex
	published uint64
	errors    uint64
	connected bool
}

// NewMQTTPublisher creates a new MQTT publisher
func NewMQTTPublisher(cfg MQTTConfig) *MQTTPublisher {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.Topic == "" {
		cfg.Topic = TopicCameraRGB
	}
	return &MQTTPublisher{cfg: cfg}
}

// Connect establishes connection to MQTT broker
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	// Connection handlers
	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		slog.Info("publish: mqtt connection established",
			"broker", p.cfg.Broker,
			"client_id", p.cfg.ClientID,
		)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		slog.Warn("publish: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", p.cfg.Broker,
		)
	}

	p.client = mqtt.NewClient(opts)

	slog.Info("publish: connecting to mqtt broker", "broker", p.cfg.Broker, "topic", p.cfg.Topic)

	token := p.client.Connect()
	timeout := p.cfg.ConnectTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout: %w", ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	p.setConnected(true)
	return nil
}

// Publish encodes msg and publishes it on the configured topic
func (p *MQTTPublisher) Publish(ctx context.Context, msg *message.ImageRGB888) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}

	payload, err := message.Encode(msg)
	if err != nil {
		p.countError()
		return err
	}

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, false, payload)
	select {
	case <-token.Done():
	case <-time.After(p.cfg.PublishTimeout):
		p.countError()
		return ErrTimeout
	case <-ctx.Done():
		p.countError()
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("mqtt publish failed: %w", err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()

	slog.Debug("publish: frame published",
		"topic", p.cfg.Topic,
		"entity_path", msg.Header.EntityPath,
		"size", len(payload),
	)
	return nil
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close(ctx context.Context) error {
	if p.client != nil {
		// Also aborts a connect retry still in progress.
		p.client.Disconnect(250) // 250ms grace period
		slog.Info("publish: mqtt disconnected")
	}
	p.setConnected(false)
	return nil
}

// Stats returns publisher statistics
func (p *MQTTPublisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{
		Connected: p.connected,
		Published: p.published,
		Errors:    p.errors,
	}
}

// Stats contains publisher statistics
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

// brokerURL prefixes a bare host:port with tcp://.
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
