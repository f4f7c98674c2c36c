package dht22

import (
	"time"

	"dhtcode-go/x/mathx"
)

// The timing engine counts the start pulse in sequencer ticks.
const TicksPerMillisecond = 300

// Start pulse limits. The sensor needs at least 1 ms; the 40 data bits take
// at most 4.8 ms, so anything past 5 ms only delays the reading.
const (
	MinStartPulse     = 1 * time.Millisecond
	MaxStartPulse     = 5 * time.Millisecond
	DefaultStartPulse = 2 * time.Millisecond
)

// StartPulse is the width of the host's low pulse that wakes the sensor.
type StartPulse struct {
	Width time.Duration
}

// PulseMillis returns a StartPulse of ms milliseconds.
func PulseMillis(ms int) StartPulse { return StartPulse{Width: time.Duration(ms) * time.Millisecond} }

// Validate reports ErrInvalidPulse for widths outside [MinStartPulse, MaxStartPulse].
func (p StartPulse) Validate() error {
	if !mathx.Between(p.Width, MinStartPulse, MaxStartPulse) {
		return ErrInvalidPulse
	}
	return nil
}

// Ticks converts the width into sequencer ticks, rounding to the nearest tick.
func (p StartPulse) Ticks() uint32 {
	if p.Width <= 0 {
		return 0
	}
	return uint32(mathx.RoundDiv(uint64(p.Width)*TicksPerMillisecond, uint64(time.Millisecond)))
}
