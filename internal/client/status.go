package client

import "time"

// ConnState is the transport connection state machine position.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateFailed       ConnState = "failed" // terminal; manual restart required
)

// ErrorInfo describes the last connection-level error.
type ErrorInfo struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Status is the connection status observable exposed to consumers.
// LastError is nil while the connection is healthy.
type Status struct {
	State     ConnState  `json:"state"`
	Connected bool       `json:"connected"`
	LastError *ErrorInfo `json:"last_error,omitempty"`
}
