package pipeline

import "errors"

var (
	// ErrConnection means the stream could not be opened; no frame was produced.
	ErrConnection = errors.New("pipeline: connection failed")

	// ErrDecode means the decoder failed in a way the session cannot survive.
	ErrDecode = errors.New("pipeline: fatal decode error")

	// ErrPublish means the transport rejected a message under PolicyFatal.
	ErrPublish = errors.New("pipeline: publish failed")

	// ErrAlreadyStarted is returned when a Supervisor is run twice.
	ErrAlreadyStarted = errors.New("pipeline: already started")
)
