package errcode

import (
	"errors"

	"ina3221-go/drivers/ina3221"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unavailable    Code = "unavailable"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	Timeout        Code = "timeout"

	// Driver preconditions and decode failures.
	InvalidChannel Code = "invalid_channel"
	OutOfRange     Code = "out_of_range"
	DecodeError    Code = "decode_error"
	NotConnected   Code = "not_connected"

	// Transport failure on the I2C bus.
	IOError Code = "io_error"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap attaches op and the mapped code to a driver error.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: MapDriverErr(err), Op: op, Msg: err.Error(), Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps ina3221 driver errors to a Code. Anything the driver did
// not originate came from the transport.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ina3221.ErrInvalidChannel):
		return InvalidChannel
	case errors.Is(err, ina3221.ErrChannelCount), errors.Is(err, ina3221.ErrInvalidAddress):
		return InvalidParams
	case errors.Is(err, ina3221.ErrOutOfRange):
		return OutOfRange
	case errors.Is(err, ina3221.ErrInvalidMode):
		return DecodeError
	case errors.Is(err, ina3221.ErrShuntUnset):
		return Unsupported
	case errors.Is(err, ina3221.ErrNotConnected):
		return NotConnected
	}
	if c := Of(err); c != Error {
		return c
	}
	return IOError
}
