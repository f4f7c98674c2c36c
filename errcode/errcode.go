package errcode

import (
	"errors"

	"dhtcode-go/drivers/dht22"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	UnknownCapability Code = "unknown_capability"
	HALNotReady       Code = "hal_not_ready"
	InvalidTopic      Code = "invalid_topic"
	UnknownPin        Code = "unknown_pin"
	PinInUse          Code = "pin_in_use"

	AlreadyInitialized Code = "already_initialized"
	NotInitialized     Code = "not_initialized"
	ChecksumFailed     Code = "checksum_failed"
	Timeout            Code = "timeout"
	NoData             Code = "no_data"
	SensorFault        Code = "sensor_fault"

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
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return MapDriverErr(err)
}

// MapDriverErr maps low-level driver errors to a Code.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, dht22.ErrAlreadyInProgress):
		return Busy
	case errors.Is(err, dht22.ErrAlreadyInitialized):
		return AlreadyInitialized
	case errors.Is(err, dht22.ErrNotInitialized), errors.Is(err, dht22.ErrNoEngine):
		return NotInitialized
	case errors.Is(err, dht22.ErrChecksum):
		return ChecksumFailed
	case errors.Is(err, dht22.ErrTimeout):
		return Timeout
	case errors.Is(err, dht22.ErrNoData):
		return NoData
	case errors.Is(err, dht22.ErrInvalidPulse):
		return InvalidParams
	}
	return Error
}
