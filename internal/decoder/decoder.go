// Package decoder is the boundary to the video decoding library.
//
// A Source negotiates the RTSP session, decompresses the bitstream and yields
// raw decoded pictures one Unit at a time. The rest of the driver never sees
// codecs or transports, only Units tagged with the sub-stream they belong to.
package decoder

import (
	"context"
	"errors"
	"time"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/pixfmt"
)

var (
	// ErrConnection means the stream could not be opened (refused, timeout, auth).
	ErrConnection = errors.New("decoder: connection failed")

	// ErrCorruptUnit marks a single undecodable unit; the session is still usable.
	ErrCorruptUnit = errors.New("decoder: corrupt unit")

	// ErrSession marks a non-recoverable decoder fault; the session is dead.
	ErrSession = errors.New("decoder: session fault")

	// ErrNotOpen is returned by Next before a successful Open.
	ErrNotOpen = errors.New("decoder: source not open")
)

// Unit is one decoded picture as produced by the decoding library.
type Unit struct {
	// StreamIndex is the logical sub-stream the unit belongs to
	StreamIndex int
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Stride is the row length in bytes (0 = packed)
	Stride int
	// Format is the pixel layout of Data
	Format pixfmt.Format
	// Data is the raw pixel buffer, owned by the receiver
	Data []byte
	// Timestamp is the capture time reported by the decoder, zero if unknown
	Timestamp time.Time
}

// Source is a decoder session for one RTSP endpoint.
//
// Implementations must guarantee:
//   - Open blocks until the handshake completes or ctx expires
//   - Next blocks until a unit, an error or ctx cancellation
//   - Next returns io.EOF on clean end of stream
//   - Next wraps ErrCorruptUnit for skippable units and ErrSession for fatal faults
//   - Close is idempotent
type Source interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (Unit, error)
	Close() error
}
