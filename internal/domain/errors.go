package domain

import "errors"

var (
	// ErrMalformedPayload is returned when an inbound event body cannot be
	// decoded. The event is discarded; prior state is never touched.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrUnknownEvent is returned for stream events that are neither "state"
	// nor "update".
	ErrUnknownEvent = errors.New("unknown event")

	// ErrMaxReconnects is the terminal connection error after the configured
	// number of consecutive reconnect attempts has been exhausted.
	ErrMaxReconnects = errors.New("max reconnection attempts reached")
)
