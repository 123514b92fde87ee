// Package frameslot implements the single-slot "latest value wins" hand-off
// between a decode producer and a publish consumer.
//
// Philosophy: "Drop frames, never queue. Latency > Completeness."
//
// A Slot holds at most one frame. Write overwrites whatever was there and
// bumps a version counter; ReadLatest blocks until the version moves past the
// caller's last seen version. A slow consumer therefore only ever skips
// frames, it never builds up a backlog.
package frameslot

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by ReadLatest once the producer closed the slot and
// no unread frame is left (end of stream).
var ErrClosed = errors.New("frameslot: closed")

// Slot is a single-producer / single-consumer mailbox with overwrite semantics.
//
// Thread-safety:
//   - All fields protected by mu
//   - Write/Close: called by the producer goroutine
//   - ReadLatest: called by the consumer goroutine (single reader)
type Slot struct {
	mu   sync.Mutex
	cond *sync.Cond

	frame   *Frame // latest frame (nil before the first Write)
	version uint64 // incremented on every Write
	closed  bool

	// --- Operational Stats ---

	writes      uint64 // total Write calls accepted
	reads       uint64 // total frames handed to the reader
	overwritten uint64 // frames replaced before anyone read them
	readVersion uint64 // version of the last frame handed out
}

// Stats is a snapshot of slot activity.
type Stats struct {
	// Version is the current version counter (number of accepted writes).
	Version uint64
	// Writes counts accepted Write calls.
	Writes uint64
	// Reads counts frames returned by ReadLatest.
	Reads uint64
	// Dropped counts frames overwritten before they were read.
	Dropped uint64
	// Closed is true after Close.
	Closed bool
}

// New creates an empty, open slot at version 0.
func New() *Slot {
	s := &Slot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Version returns the current version. A consumer starts from this value.
func (s *Slot) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Write stores frame as the latest value (non-blocking).
//
// Algorithm:
//  1. Lock mutex
//  2. Ignore the write if the slot is closed
//  3. Count a drop if the previous frame was never read
//  4. Overwrite frame, increment version
//  5. Signal the reader, unlock
//
// Never blocks on the reader and never fails.
func (s *Slot) Write(frame *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.frame != nil && s.readVersion < s.version {
		s.overwritten++
	}

	s.frame = frame
	s.version++
	s.writes++

	s.cond.Signal()
}

// ReadLatest blocks until the slot version exceeds lastSeen, then returns the
// current frame with its version.
//
// Returns immediately when a newer version is already present, so there is no
// missed-wakeup window between two calls. After Close it still hands out a
// pending unread frame once, then returns ErrClosed. If ctx is cancelled while
// waiting, ctx.Err() is returned.
func (s *Slot) ReadLatest(ctx context.Context, lastSeen uint64) (*Frame, uint64, error) {
	// Wake the waiter on cancellation. Taking the lock before Broadcast
	// guarantees the waiter is either parked in Wait or has not yet checked
	// ctx, so the wakeup cannot be lost.
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.version <= lastSeen && !s.closed {
		if err := ctx.Err(); err != nil {
			return nil, lastSeen, err
		}
		s.cond.Wait()
	}

	if s.version > lastSeen && s.frame != nil {
		s.reads++
		s.readVersion = s.version
		return s.frame, s.version, nil
	}

	return nil, lastSeen, ErrClosed
}

// Close marks end of stream and wakes the reader.
//
// Idempotent: safe to call multiple times.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (s *Slot) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stats returns an operational snapshot.
func (s *Slot) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Version: s.version,
		Writes:  s.writes,
		Reads:   s.reads,
		Dropped: s.overwritten,
		Closed:  s.closed,
	}
}
