// Package dht22periph is a dht22.Engine for Linux boards that bit-bangs the
// single-wire protocol on a periph.io GPIO pin.
//
// Timing is done by busy-reading the line from a goroutine, so it is best
// effort: a missed edge leaves the engine disarmed exactly like a stalled PIO
// program, and the coordinator's timeout and reset path recovers it.
package dht22periph

import (
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"dhtcode-go/drivers/dht22"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// edges sampled per cycle: response low/high, 40 bit pairs and slack.
const edges = 84

var (
	ErrNoPin      = errors.New("dht22periph: no such pin")
	ErrConfigured = errors.New("dht22periph: already configured")
)

type Engine struct {
	pin gpio.PinIO

	mu    sync.Mutex
	queue []uint16
	armed bool
	epoch uint64
	cb    func()
}

// Open binds an engine to a pin by periph name (e.g. "GPIO4").
// host.Init must have run.
func Open(name string) (*Engine, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, ErrNoPin
	}
	return New(p), nil
}

func New(pin gpio.PinIO) *Engine { return &Engine{pin: pin} }

// Configure idles the line high. The pin number is that of the bound pin and
// only used for logging by callers.
func (e *Engine) Configure(_ uint8, onComplete func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cb != nil {
		return ErrConfigured
	}
	if err := e.pin.Out(gpio.High); err != nil {
		return err
	}
	e.cb = onComplete
	e.armed = true
	return nil
}

func (e *Engine) IssueStart(ticks uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.armed {
		return
	}
	e.armed = false
	width := time.Duration(ticks) * time.Millisecond / dht22.TicksPerMillisecond
	go e.run(e.epoch, width)
}

func (e *Engine) run(epoch uint64, width time.Duration) {
	words, ok := e.capture(width)
	if !ok {
		// Lost edge: stay disarmed until ReinitializeSequencer.
		return
	}

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue[:0], words[:]...)
	cb := e.cb
	e.mu.Unlock()

	if cb != nil {
		cb()
	}

	e.mu.Lock()
	if epoch == e.epoch {
		e.armed = true
	}
	e.mu.Unlock()
}

func (e *Engine) capture(width time.Duration) ([3]uint16, bool) {
	levels := make([]gpio.Level, 0, edges)
	durations := make([]time.Duration, 0, edges)

	gc := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gc)

	if err := e.pin.Out(gpio.Low); err != nil {
		return [3]uint16{}, false
	}
	time.Sleep(width)
	if err := e.pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		_ = e.pin.Out(gpio.High)
		return [3]uint16{}, false
	}

	prev := e.pin.Read()
	level := prev
	for i := 0; i < edges; i++ {
		t0 := time.Now()
		for level == prev && time.Since(t0) < time.Millisecond {
			level = e.pin.Read()
		}
		durations = append(durations, time.Since(t0))
		levels = append(levels, prev)
		prev = level
	}
	_ = e.pin.Out(gpio.High)

	return decodeEdges(levels, durations)
}

// decodeEdges turns sampled line levels into the three frame words. The
// last 80 entries ending at the final low are 40 high/low pairs; a high
// longer than 30 µs is a one.
func decodeEdges(levels []gpio.Level, durations []time.Duration) ([3]uint16, bool) {
	var w [3]uint16
	end := -1
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i] == gpio.Low {
			end = i
			break
		}
	}
	start := end - 79
	if end < 0 || start < 0 {
		return w, false
	}

	var bits uint64
	for i := start; i < end; i += 2 {
		if levels[i] != gpio.High || durations[i] > 90*time.Microsecond {
			return w, false
		}
		if levels[i+1] != gpio.Low || durations[i+1] > 70*time.Microsecond || durations[i+1] < 35*time.Microsecond {
			return w, false
		}
		bits <<= 1
		if durations[i] > 30*time.Microsecond {
			bits |= 1
		}
	}
	w[0] = uint16(bits >> 24)
	w[1] = uint16(bits >> 8)
	w[2] = uint16(bits & 0xFF)
	return w, true
}

func (e *Engine) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Engine) DrainWords(dst []uint16) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := copy(dst, e.queue)
	e.queue = e.queue[n:]
	return n
}

func (e *Engine) ClearQueue() {
	e.mu.Lock()
	e.queue = e.queue[:0]
	e.mu.Unlock()
}

// ReinitializeSequencer drops any capture in flight and re-arms the engine
// with the line idling high.
func (e *Engine) ReinitializeSequencer() {
	e.mu.Lock()
	e.epoch++
	e.armed = true
	e.mu.Unlock()
	_ = e.pin.Out(gpio.High)
}

var _ dht22.Engine = (*Engine)(nil)
