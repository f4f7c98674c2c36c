package dht22

import "errors"

// Status is the coordinator's diagnostic state. It is advisory only; the
// completion gate decides whether a cycle is in flight.
type Status uint8

const (
	Idle Status = iota
	Started
	RawReady
	Decoded
	ChecksumFailed
	TimedOutReset
)

var statusText = [...]string{
	Idle:           "IDLE",
	Started:        "STARTED",
	RawReady:       "RAW_READY",
	Decoded:        "DECODED",
	ChecksumFailed: "CHECKSUM_FAILED",
	TimedOutReset:  "TIMED_OUT_RESET",
}

func (s Status) String() string {
	if int(s) < len(statusText) {
		return statusText[s]
	}
	return "UNKNOWN"
}

// Err returns the error a caller should see for a finished cycle in state s,
// or nil when the reading is good.
func (s Status) Err() error {
	switch s {
	case Decoded:
		return nil
	case ChecksumFailed:
		return ErrChecksum
	case TimedOutReset:
		return ErrTimeout
	default:
		return ErrNoData
	}
}

// Errors returned by the driver.
var (
	ErrAlreadyInitialized = errors.New("dht22: already initialized")
	ErrNotInitialized     = errors.New("dht22: not initialized")
	ErrAlreadyInProgress  = errors.New("dht22: reading already in progress")
	ErrChecksum           = errors.New("dht22: checksum mismatch")
	ErrTimeout            = errors.New("dht22: timeout")
	ErrNoData             = errors.New("dht22: no frame received")
	ErrInvalidPulse       = errors.New("dht22: start pulse out of range")
	ErrNoEngine           = errors.New("dht22: no timing engine")
)
