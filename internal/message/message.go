// Package message defines the payload published on the CAMERA_RGB topic.
package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrInvalid is returned when a message does not describe a valid RGB888 image.
var ErrInvalid = errors.New("message: invalid image")

// Header carries the metadata attached to every published frame
type Header struct {
	// Timestamp is the wallclock time at publish
	Timestamp time.Time `msgpack:"timestamp" json:"timestamp"`
	// ReferenceID correlates the message with the frame it was built from
	ReferenceID string `msgpack:"reference_id" json:"reference_id"`
	// EntityPath is the stream's session path, e.g. /camera/10.0.0.5/stream1
	EntityPath string `msgpack:"entity_path" json:"entity_path"`
}

// ImageRGB888 is a packed, unpadded RGB888 picture.
type ImageRGB888 struct {
	Header Header `msgpack:"header" json:"header"`
	Width  int    `msgpack:"width" json:"width"`
	Height int    `msgpack:"height" json:"height"`
	Data   []byte `msgpack:"data" json:"-"`
}

// Validate checks that Data holds exactly Width × Height × 3 bytes.
func (m *ImageRGB888) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalid, m.Width, m.Height)
	}
	if want := m.Width * m.Height * 3; len(m.Data) != want {
		return fmt.Errorf("%w: %d bytes for %dx%d, want %d", ErrInvalid, len(m.Data), m.Width, m.Height, want)
	}
	return nil
}

// Encode serializes the message with msgpack.
func Encode(m *ImageRGB888) ([]byte, error) {
	payload, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image: %w", err)
	}
	return payload, nil
}

// Decode parses a msgpack payload produced by Encode.
func Decode(payload []byte) (*ImageRGB888, error) {
	var m ImageRGB888
	if err := msgpack.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal image: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
