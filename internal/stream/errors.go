package stream

import (
	"errors"
	"fmt"
)

// Common stream errors.
var (
	// ErrNotConnected is returned when a transport write is attempted
	// without an open connection.
	ErrNotConnected = errors.New("not connected")

	// ErrMalformed is returned when an inbound frame cannot be decoded.
	ErrMalformed = errors.New("malformed envelope")

	// ErrReconnectExhausted is returned once the reconnection policy has
	// given up. Only a fresh Connect clears it.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

	// ErrClientClosed is returned by Connect when the client was torn down
	// while the attempt was in flight.
	ErrClientClosed = errors.New("client closed during connect")
)

// MalformedError wraps ErrMalformed with the decoder's reason.
type MalformedError struct {
	Reason string
}

func (e MalformedError) Error() string {
	return "malformed envelope: " + e.Reason
}

func (e MalformedError) Unwrap() error {
	return ErrMalformed
}

// ReconnectError wraps ErrReconnectExhausted with the attempt count.
type ReconnectError struct {
	Attempts int
}

func (e ReconnectError) Error() string {
	return fmt.Sprintf("connection lost, gave up after %d reconnect attempts", e.Attempts)
}

func (e ReconnectError) Unwrap() error {
	return ErrReconnectExhausted
}

// ConnectError wraps a transport-level dial failure with the endpoint.
type ConnectError struct {
	URL string
	Err error
}

func (e ConnectError) Error() string {
	return "connect " + e.URL + ": " + e.Err.Error()
}

func (e ConnectError) Unwrap() error {
	return e.Err
}
