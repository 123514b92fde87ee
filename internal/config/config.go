// Package config loads the driver configuration from an optional YAML file
// and the process environment.
//
// Environment variables always win over the file. Camera keys accept
// comma-separated lists, one entry per camera.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/camera"
)

// Config represents the complete driver configuration
type Config struct {
	Camera   CameraConfig  `yaml:"camera"`
	Decoder  DecoderConfig `yaml:"decoder"`
	Publish  PublishConfig `yaml:"publish"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"` // debug, info, warn, error
}

// CameraConfig holds the raw, possibly comma-separated, camera keys
type CameraConfig struct {
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	IP             string        `yaml:"ip"`
	Port           string        `yaml:"port"`
	URISuffix      string        `yaml:"uri_suffix"`
	StreamIndex    string        `yaml:"stream_index"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DecoderConfig selects and tunes the decoder backend
type DecoderConfig struct {
	Backend string        `yaml:"backend"` // gstreamer, mock
	Latency time.Duration `yaml:"latency"` // rtspsrc jitterbuffer
}

// PublishConfig selects the publish transport
type PublishConfig struct {
	Transport   string          `yaml:"transport"`    // mqtt, nats, websocket
	Topic       string          `yaml:"topic"`        // resolved name of CAMERA_RGB
	ErrorPolicy string          `yaml:"error_policy"` // continue, fatal
	MQTT        MQTTConfig      `yaml:"mqtt"`
	NATS        NATSConfig      `yaml:"nats"`
	WebSocket   WebSocketConfig `yaml:"websocket"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	QoS      int    `yaml:"qos"`
}

// NATSConfig contains NATS server settings
type NATSConfig struct {
	URL string `yaml:"url"`
}

// WebSocketConfig contains the broadcast server settings
type WebSocketConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig contains the metrics/health server settings
type MetricsConfig struct {
	Addr string `yaml:"addr"` // "off" disables the server
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			Port:           strconv.Itoa(camera.DefaultPort),
			StreamIndex:    "0",
			ConnectTimeout: 5 * time.Second,
		},
		Decoder: DecoderConfig{
			Backend: "gstreamer",
			Latency: 200 * time.Millisecond,
		},
		Publish: PublishConfig{
			Transport:   "mqtt",
			Topic:       "CAMERA_RGB",
			ErrorPolicy: "continue",
			MQTT:        MQTTConfig{Broker: "localhost:1883"},
			NATS:        NATSConfig{URL: "nats://127.0.0.1:4222"},
			WebSocket:   WebSocketConfig{Addr: ":8080"},
		},
		Metrics:  MetricsConfig{Addr: ":9090"},
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"CAMERA_USERNAME":      &cfg.Camera.Username,
		"CAMERA_PASSWORD":      &cfg.Camera.Password,
		"CAMERA_IP":            &cfg.Camera.IP,
		"CAMERA_PORT":          &cfg.Camera.Port,
		"CAMERA_URI_SUFFIX":    &cfg.Camera.URISuffix,
		"STREAM_INDEX":         &cfg.Camera.StreamIndex,
		"DECODER_BACKEND":      &cfg.Decoder.Backend,
		"PUBLISH_TRANSPORT":    &cfg.Publish.Transport,
		"CAMERA_RGB_TOPIC":     &cfg.Publish.Topic,
		"PUBLISH_ERROR_POLICY": &cfg.Publish.ErrorPolicy,
		"MQTT_BROKER":          &cfg.Publish.MQTT.Broker,
		"MQTT_CLIENT_ID":       &cfg.Publish.MQTT.ClientID,
		"NATS_URL":             &cfg.Publish.NATS.URL,
		"WEBSOCKET_ADDR":       &cfg.Publish.WebSocket.Addr,
		"METRICS_ADDR":         &cfg.Metrics.Addr,
		"LOG_LEVEL":            &cfg.LogLevel,
	}
	for key, dst := range strs {
		if val, ok := os.LookupEnv(key); ok {
			*dst = val
		}
	}

	durations := map[string]*time.Duration{
		"CONNECT_TIMEOUT": &cfg.Camera.ConnectTimeout,
		"RTSP_LATENCY":    &cfg.Decoder.Latency,
	}
	for key, dst := range durations {
		if val, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if val, ok := os.LookupEnv("MQTT_QOS"); ok {
		qos, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("MQTT_QOS: %w", err)
		}
		cfg.Publish.MQTT.QoS = qos
	}

	return nil
}

// MetricsEnabled reports whether the metrics server should run.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Addr != "" && !strings.EqualFold(c.Metrics.Addr, "off")
}

// SlogLevel maps LogLevel onto a slog level (unknown values mean info).
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
