// Package dht22 provides a driver for the DHT22/AM2302 humidity and
// temperature sensor read through an asynchronous timing engine.
//
// The engine (a PIO state machine on RP2040) does all pulse timing; the CPU
// only starts a cycle and collects three words when the engine signals
// completion. The API is two-phase:
//
//	d.Start(dht22.PulseMillis(2))   // claim the sensor and trigger (fast)
//	r := d.AwaitResult(true)        // block until the frame arrives or 15 ms pass
//
// Read performs both steps. A cycle that never completes (a lost edge leaves
// the engine waiting forever) is bounded by Config.Timeout; with reset enabled
// the engine is re-initialized so the next Start works without Configure.
//
// Ownership of the shared frame passes through a completion gate: the
// completion handler writes the frame and status before releasing the gate,
// and the consumer only reads them after observing the release.
package dht22

import (
	"sync/atomic"
	"time"

	"dhtcode-go/x/conv"
	"dhtcode-go/x/gate"
)

// DefaultTimeout bounds AwaitResult. A full frame takes at most ~5 ms after a
// 5 ms start pulse.
const DefaultTimeout = 15 * time.Millisecond

// Config controls the coordinator. Zero fields take defaults.
type Config struct {
	Pin   uint8
	Debug bool
	// Timeout bounds AwaitResult. Default 15 ms.
	Timeout time.Duration
	// Pulse is used by Read and Update. Default 2 ms.
	Pulse StartPulse
}

const (
	stateNew uint32 = iota
	stateConfiguring
	stateReady
)

// Stats counts cycle outcomes since Configure.
type Stats struct {
	Cycles         uint32
	Decoded        uint32
	ChecksumFailed uint32
	Timeouts       uint32
	ShortFrames    uint32
	Stale          uint32 // completions ignored because no cycle owned them
}

// Device coordinates acquisition cycles on one sensor.
type Device struct {
	eng   Engine
	cfg   Config
	state atomic.Uint32
	gate  *gate.Gate

	// Written by the completion handler before the gate is released.
	frame  atomic.Uint64
	status atomic.Uint32

	cycle atomic.Uint32 // gate generation claimed by the last Start
	last  atomic.Uint64 // packed frame of the last Decoded reading

	cycles, decoded, csFail, timeouts, short, stale atomic.Uint32
}

// New creates a Device on eng. It does not touch the hardware.
func New(eng Engine) *Device {
	return &Device{eng: eng, gate: gate.New()}
}

// Configure sets up the pin and completion routing. It may be called once;
// later calls return ErrAlreadyInitialized and keep the first configuration.
func (d *Device) Configure(cfg Config) error {
	if d.eng == nil {
		return ErrNoEngine
	}
	if !d.state.CompareAndSwap(stateNew, stateConfiguring) {
		return ErrAlreadyInitialized
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Pulse.Width == 0 {
		cfg.Pulse.Width = DefaultStartPulse
	}
	d.cfg = cfg

	if err := d.eng.Configure(cfg.Pin, d.handleCompletion); err != nil {
		d.state.Store(stateNew)
		return err
	}
	d.gate.Release()
	d.status.Store(uint32(Idle))
	d.state.Store(stateReady)
	if cfg.Debug {
		println("[dht22] init: engine configured on pin", cfg.Pin)
	}
	return nil
}

func (d *Device) configured() bool { return d.state.Load() == stateReady }

// Start claims the sensor and triggers one acquisition. It returns
// ErrAlreadyInProgress, without touching the hardware, while a previous cycle
// has not been collected by AwaitResult.
func (d *Device) Start(p StartPulse) error {
	if !d.configured() {
		return ErrNotInitialized
	}
	if err := p.Validate(); err != nil {
		return err
	}
	gen, ok := d.gate.ClaimIfReady()
	if !ok {
		if d.cfg.Debug {
			println("[dht22] start: cycle already in progress")
		}
		return ErrAlreadyInProgress
	}
	d.cycle.Store(gen)
	// Set before the hardware can complete, so the handler sees Started.
	d.status.Store(uint32(Started))
	d.cycles.Add(1)
	d.eng.IssueStart(p.Ticks())
	if d.cfg.Debug {
		println("[dht22] start: issued", p.Ticks(), "ticks")
	}
	return nil
}

// handleCompletion runs in the engine's completion context. It never blocks
// and never waits on the gate.
func (d *Device) handleCompletion() {
	gen, busy := d.gate.Snapshot()
	// After Abandon or Reset the generation no longer matches the cycle.
	// Hold fails once the consumer has abandoned the cycle.
	if !busy || gen != d.cycle.Load() || !d.gate.Hold(gen) {
		d.eng.ClearQueue()
		d.stale.Add(1)
		return
	}
	n := d.eng.QueueDepth()
	if d.cfg.Debug {
		println("[dht22] irq: queue depth", n)
	}
	if n == FrameWords {
		var w [FrameWords]uint16
		d.eng.DrainWords(w[:])
		d.frame.Store(RawFrame{Humidity: w[0], Temperature: w[1], Checksum: w[2]}.pack())
		d.status.CompareAndSwap(uint32(Started), uint32(RawReady))
	} else {
		d.eng.ClearQueue()
		d.short.Add(1)
	}
	if !d.gate.ReleaseIf(gen) {
		d.stale.Add(1)
	}
}

// AwaitResult waits up to Config.Timeout for the current cycle.
func (d *Device) AwaitResult(resetOnTimeout bool) Reading {
	return d.AwaitResultWithin(d.timeout(), resetOnTimeout)
}

// AwaitResultWithin blocks until the in-flight cycle completes or timeout
// elapses, then decodes the frame. On timeout the status is TimedOutReset and,
// if resetOnTimeout is set, the engine is re-initialized. The gate is Ready
// again on every return path.
func (d *Device) AwaitResultWithin(timeout time.Duration, resetOnTimeout bool) Reading {
	defer d.gate.Release()

	gen := d.cycle.Load()
	done := d.gate.WaitReady(timeout)
	if !done && !d.gate.Abandon(gen) {
		// The handler took the cycle before the deadline and finishes
		// without blocking; its frame wins over the timeout.
		for !done && d.gate.Held() {
			done = d.gate.WaitReady(timeout)
		}
		done = done || d.gate.IsReady()
	}

	if !done {
		d.timeouts.Add(1)
		if d.cfg.Debug {
			println("[dht22] await: timed out after", timeout.String())
		}
		if resetOnTimeout {
			d.Reset()
		}
		d.status.Store(uint32(TimedOutReset))
		return Reading{Status: TimedOutReset}
	}

	st := Status(d.status.Load())
	if st != RawReady {
		if d.cfg.Debug {
			println("[dht22] await: no raw frame, status", st.String())
		}
		return Reading{Status: st}
	}

	r, ok := Decode(unpackFrame(d.frame.Load()))
	if ok {
		d.decoded.Add(1)
		d.last.Store(r.Raw.pack() | lastValid)
	} else {
		d.csFail.Add(1)
		if d.cfg.Debug {
			var buf [16]byte
			println("[dht22] await: checksum failed, frame", frameHex(buf[:], r.Raw), "want", r.Calculated)
		}
	}
	d.status.Store(uint32(r.Status))
	return r
}

// Reset returns the engine to its pre-start state and discards queued words.
// Completions from cycles started before the reset are ignored. Pin and
// completion routing are kept. Reset is a no-op before Configure.
func (d *Device) Reset() {
	if !d.configured() {
		return
	}
	d.gate.Invalidate()
	d.eng.ReinitializeSequencer()
	d.eng.ClearQueue()
	if d.cfg.Debug {
		println("[dht22] reset: sequencer reinitialized")
	}
}

// Read runs a full cycle: Start, then AwaitResult with reset on timeout.
func (d *Device) Read(p StartPulse) (Reading, error) {
	if err := d.Start(p); err != nil {
		return Reading{Status: d.Status()}, err
	}
	r := d.AwaitResult(true)
	return r, r.Status.Err()
}

// Status returns the diagnostic status.
func (d *Device) Status() Status { return Status(d.status.Load()) }

// lastValid marks d.last as holding a frame; pack uses the low 48 bits.
const lastValid = 1 << 48

// Last returns the most recent Decoded reading, or the zero Reading before
// the first one. It is safe to call from any goroutine.
func (d *Device) Last() Reading {
	v := d.last.Load()
	if v&lastValid == 0 {
		return Reading{}
	}
	r, _ := Decode(unpackFrame(v))
	return r
}

// Busy reports whether a cycle is in flight.
func (d *Device) Busy() bool { return !d.gate.IsReady() }

func (d *Device) Stats() Stats {
	return Stats{
		Cycles:         d.cycles.Load(),
		Decoded:        d.decoded.Load(),
		ChecksumFailed: d.csFail.Load(),
		Timeouts:       d.timeouts.Load(),
		ShortFrames:    d.short.Load(),
		Stale:          d.stale.Load(),
	}
}

func (d *Device) timeout() time.Duration {
	if d.cfg.Timeout > 0 {
		return d.cfg.Timeout
	}
	return DefaultTimeout
}

// frameHex renders a frame as "HHHH TTTT CC" for debug output.
func frameHex(buf []byte, f RawFrame) string {
	n := copy(buf, conv.Hex16(buf[:4], f.Humidity))
	buf[n] = ' '
	n++
	n += copy(buf[n:], conv.Hex16(buf[n:n+4], f.Temperature))
	buf[n] = ' '
	n++
	n += copy(buf[n:], conv.Hex16(buf[n:n+4], f.Checksum)[2:])
	return string(buf[:n])
}
