// Package dht22sim is a software stand-in for the DHT22 timing engine.
//
// It behaves like the PIO program: after IssueStart it waits Latency, pushes
// three words into a 4-deep queue and fires the completion callback. Faults
// can be scripted per cycle, including a stall where the engine hangs until
// ReinitializeSequencer, as the real program does when an edge is lost.
package dht22sim

import (
	"errors"
	"sync"
	"time"

	"dhtcode-go/drivers/dht22"
)

// Fault selects how one simulated cycle misbehaves.
type Fault uint8

const (
	FaultNone    Fault = iota
	FaultStall         // never completes
	FaultShort         // completes with a partial frame
	FaultCorrupt       // completes with a bad checksum
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultStall:
		return "stall"
	case FaultShort:
		return "short"
	case FaultCorrupt:
		return "corrupt"
	}
	return "unknown"
}

// ParseFault maps a fault name to a Fault.
func ParseFault(s string) (Fault, error) {
	for f := FaultNone; f <= FaultCorrupt; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return FaultNone, errors.New("dht22sim: unknown fault " + s)
}

// Cycle is one scripted acquisition.
type Cycle struct {
	Frame dht22.RawFrame
	Fault Fault
}

// QueueCap is the depth of the receive queue, matching the PIO RX FIFO.
const QueueCap = 4

var ErrConfigured = errors.New("dht22sim: already configured")

// Engine implements dht22.Engine.
type Engine struct {
	// Latency is the time from IssueStart to completion. Default 5 ms.
	Latency time.Duration
	// Default is delivered when the script is exhausted.
	Default Cycle

	mu       sync.Mutex
	queue    []uint16
	script   []Cycle
	armed    bool   // waiting for a start
	epoch    uint64 // bumped by ReinitializeSequencer
	pin      uint8
	cb       func()
	starts   int
	resets   int
	lastTick uint32

	irq sync.Mutex // serialises completions like a masked interrupt line
}

// New returns an engine that reports a steady 50.0 %RH / 20.0 °C.
func New() *Engine {
	return &Engine{
		Latency: 5 * time.Millisecond,
		Default: Cycle{Frame: dht22.EncodeFrame(500, 200)},
	}
}

// Script appends cycles to be delivered in order before Default.
func (e *Engine) Script(c ...Cycle) {
	e.mu.Lock()
	e.script = append(e.script, c...)
	e.mu.Unlock()
}

func (e *Engine) Configure(pin uint8, onComplete func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cb != nil {
		return ErrConfigured
	}
	e.pin = pin
	e.cb = onComplete
	e.armed = true
	return nil
}

func (e *Engine) IssueStart(ticks uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	e.lastTick = ticks
	if !e.armed {
		// A hung program never pulls another start word.
		return
	}
	e.armed = false

	c := e.Default
	if len(e.script) > 0 {
		c = e.script[0]
		e.script = e.script[1:]
	}
	if c.Fault == FaultStall {
		return
	}
	go e.run(e.epoch, c)
}

func (e *Engine) run(epoch uint64, c Cycle) {
	time.Sleep(e.Latency)

	f := c.Frame
	words := []uint16{f.Humidity, f.Temperature, f.Checksum}
	switch c.Fault {
	case FaultShort:
		words = words[:2]
	case FaultCorrupt:
		words[2] = uint16(uint8(f.Checksum) + 1)
	}

	e.irq.Lock()
	defer e.irq.Unlock()

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	for _, w := range words {
		if len(e.queue) < QueueCap {
			e.queue = append(e.queue, w)
		}
	}
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

func (e *Engine) ReinitializeSequencer() {
	e.mu.Lock()
	e.epoch++
	e.armed = true
	e.resets++
	e.mu.Unlock()
}

// State is a snapshot for tests and diagnostics.
type State struct {
	Armed      bool
	QueueDepth int
	Starts     int
	Resets     int
	LastTicks  uint32
	Pin        uint8
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Armed:      e.armed,
		QueueDepth: len(e.queue),
		Starts:     e.starts,
		Resets:     e.resets,
		LastTicks:  e.lastTick,
		Pin:        e.pin,
	}
}

// Push queues words as a late or stray program would, without a cycle.
// Words past QueueCap are dropped.
func (e *Engine) Push(words ...uint16) {
	e.mu.Lock()
	for _, w := range words {
		if len(e.queue) < QueueCap {
			e.queue = append(e.queue, w)
		}
	}
	e.mu.Unlock()
}

// Fire invokes the completion callback directly, as a spurious or late
// interrupt would.
func (e *Engine) Fire() {
	e.irq.Lock()
	defer e.irq.Unlock()
	e.mu.Lock()
	cb := e.cb
	e.mu.Unlock()
	if cb != nil {
		cb()
	}
}
