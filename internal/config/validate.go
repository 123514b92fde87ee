package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/camera"
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if _, err := cfg.Endpoints(); err != nil {
		return err
	}

	if cfg.Camera.ConnectTimeout <= 0 {
		return fmt.Errorf("camera.connect_timeout must be > 0")
	}

	switch cfg.Decoder.Backend {
	case "gstreamer", "mock":
	default:
		return fmt.Errorf("decoder.backend must be gstreamer or mock, got %q", cfg.Decoder.Backend)
	}

	if cfg.Publish.Topic == "" {
		return fmt.Errorf("publish.topic is required")
	}

	switch strings.ToLower(cfg.Publish.ErrorPolicy) {
	case "continue", "fatal":
	default:
		return fmt.Errorf("publish.error_policy must be continue or fatal, got %q", cfg.Publish.ErrorPolicy)
	}

	switch cfg.Publish.Transport {
	case "mqtt":
		if cfg.Publish.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
		if cfg.Publish.MQTT.QoS < 0 || cfg.Publish.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.Publish.MQTT.QoS)
		}
	case "nats":
		if cfg.Publish.NATS.URL == "" {
			return fmt.Errorf("nats.url is required")
		}
	case "websocket":
		if cfg.Publish.WebSocket.Addr == "" {
			return fmt.Errorf("websocket.addr is required")
		}
	default:
		return fmt.Errorf("publish.transport must be mqtt, nats or websocket, got %q", cfg.Publish.Transport)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	return nil
}

// Endpoints expands the camera keys into one endpoint per camera.
//
// CAMERA_IP decides how many cameras there are. Every other key must list
// either one value per camera or a single value shared by all of them.
func (c *Config) Endpoints() ([]camera.Endpoint, error) {
	ips := splitCSV(c.Camera.IP)
	if len(ips) == 0 || (len(ips) == 1 && ips[0] == "") {
		return nil, fmt.Errorf("CAMERA_IP is required")
	}
	n := len(ips)

	fields := []struct {
		key      string
		raw      string
		required bool
	}{
		{"CAMERA_USERNAME", c.Camera.Username, true},
		{"CAMERA_PASSWORD", c.Camera.Password, true},
		{"CAMERA_PORT", c.Camera.Port, false},
		{"CAMERA_URI_SUFFIX", c.Camera.URISuffix, false},
		{"STREAM_INDEX", c.Camera.StreamIndex, false},
	}

	values := make(map[string][]string, len(fields))
	var lengths []string
	mismatch := false
	for _, f := range fields {
		if f.required && strings.TrimSpace(f.raw) == "" {
			return nil, fmt.Errorf("%s is required", f.key)
		}
		list := splitCSV(f.raw)
		if len(list) == 1 && n > 1 {
			list = repeat(list[0], n)
		}
		if len(list) != n {
			mismatch = true
		}
		values[f.key] = list
		lengths = append(lengths, fmt.Sprintf("%s: %d", f.key, len(splitCSV(f.raw))))
	}
	if mismatch {
		return nil, fmt.Errorf("all camera config fields must have the same number of comma-separated values as CAMERA_IP (%d); field lengths: %s",
			n, strings.Join(lengths, ", "))
	}

	endpoints := make([]camera.Endpoint, 0, n)
	for i := 0; i < n; i++ {
		port, err := parseInt(values["CAMERA_PORT"][i], camera.DefaultPort)
		if err != nil {
			return nil, fmt.Errorf("invalid value in CAMERA_PORT: %w", err)
		}
		index, err := parseInt(values["STREAM_INDEX"][i], 0)
		if err != nil {
			return nil, fmt.Errorf("invalid value in STREAM_INDEX: %w", err)
		}

		ep, err := camera.NewEndpoint(
			ips[i],
			port,
			values["CAMERA_USERNAME"][i],
			values["CAMERA_PASSWORD"][i],
			values["CAMERA_URI_SUFFIX"][i],
			index,
		)
		if err != nil {
			return nil, fmt.Errorf("camera %d: %w", i, err)
		}
		endpoints = append(endpoints, ep)
	}

	return endpoints, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func repeat(v string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// parseInt parses s, returning def for an empty value.
func parseInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
