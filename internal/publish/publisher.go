// Package publish delivers ImageRGB888 messages to downstream consumers.
//
// Every transport publishes msgpack encoded messages to the resolved name of
// the logical CAMERA_RGB topic. Transports keep their own client side send
// timeouts; Publish never blocks indefinitely.
package publish

import (
	"context"
	"errors"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/message"
)

// TopicCameraRGB is the logical topic frames are published on.
const TopicCameraRGB = "CAMERA_RGB"

var (
	// ErrNotConnected is returned when the transport has no live connection.
	ErrNotConnected = errors.New("publish: not connected")

	// ErrTimeout is returned when the transport did not acknowledge in time.
	ErrTimeout = errors.New("publish: timeout")
)

// Publisher is a publish transport.
type Publisher interface {
	Publish(ctx context.Context, msg *message.ImageRGB888) error
	Close(ctx context.Context) error
}

// ResolveTopic maps a logical topic to the transport topic name.
//
// Unmapped or empty mappings resolve to the logical name itself.
func ResolveTopic(logical string, mapping map[string]string) string {
	if name, ok := mapping[logical]; ok && name != "" {
		return name
	}
	return logical
}
