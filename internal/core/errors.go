package core

import (
	"errors"
	"fmt"
)

// ProtocolError is returned whenever a client sends something that violates the
// protocol. The connection that produced it is always terminated and Reason is
// sent to the client in the termination message.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol violation: " + e.Reason
}

// Violationf builds a ProtocolError with a formatted reason.
func Violationf(format string, args ...interface{}) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// AsProtocolError unwraps err looking for a ProtocolError.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Version is reported to clients in the handshake reply and by the status
// endpoint. Overridden at build time with -ldflags.
var Version = "v0.1.0-dev"
