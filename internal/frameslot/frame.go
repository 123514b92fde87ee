package frameslot

import "time"

// Frame is one decoded picture in packed RGB888.
//
// IMMUTABILITY CONTRACT:
//   - Producer: MUST NOT modify Data after Write(frame)
//   - Consumer: MUST NOT modify Data (read-only access)
//
// Ownership moves from the producer to the slot on Write; the slot hands the
// same backing array to the consumer, no copies are made on the way.
type Frame struct {
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data is Width × Height × 3 bytes, row-major, top-to-bottom, no padding
	Data []byte
	// Timestamp is the capture time reported by the decoder (advisory)
	Timestamp time.Time
	// StreamIndex is the decoder sub-stream the frame came from
	StreamIndex int
	// TraceID correlates producer and consumer log lines for one frame
	TraceID string
}

// Valid reports whether the buffer length matches the declared geometry.
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Data) == f.Width*f.Height*3
}
