package link

import (
	"context"
	"fmt"

	"github.com/juju/errors"
)

var (
	// datagram dropped, receive loop continues
	ErrFormat = fmt.Errorf("format error")
	// body is not UTF-8, answered with 400
	ErrEncoding = fmt.Errorf("encoding error")
	// body is not JSON object, answered with 400
	ErrParse = fmt.Errorf("parse error")
	// data segment with unknown type or unusable fields, answered with 400
	ErrMessageType = fmt.Errorf("invalid message type")
	// actuator failed, answered with 500
	ErrActuator = fmt.Errorf("actuator failure")
	// client did not receive SYN|ACK in time, no retry
	ErrHandshakeTimeout = fmt.Errorf("handshake timeout")
	ErrClosing          = fmt.Errorf("closing")
)

// TransportError is socket level send/receive failure.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s addr=%s: %v", e.Op, e.Addr, e.Err)
}

func IsTransport(err error) bool {
	_, ok := errors.Cause(err).(*TransportError)
	return ok
}

func IsFormat(err error) bool { return errors.Cause(err) == ErrFormat }

// IsBadRequest reports errors answered with 400.
func IsBadRequest(err error) bool {
	switch errors.Cause(err) {
	case ErrEncoding, ErrParse, ErrMessageType:
		return true
	}
	return false
}

func IsCanceled(err error) bool {
	switch errors.Cause(err) {
	case context.Canceled, ErrClosing:
		return true
	}
	return false
}
