//go:build rp2040

package dht22

import (
	"device/rp"
	"machine"
	"runtime/interrupt"

	pio "github.com/tinygo-org/pio/rp2-pio"
)

// dht22 PIO program. The state machine runs at 300 kHz so one iteration of
// the low_loop is one tick of the start pulse, and the 12-cycle delay lands
// the sample ~40 us into each data bit's high phase (0 = ~27 us, 1 = ~70 us).
//
//	.wrap_target
//	    pull block          ; start pulse width in ticks
//	    set pins, 0
//	    set pindirs, 1      ; drive the line low
//	    mov x, osr
//	low_loop:
//	    jmp x-- low_loop
//	    set pindirs, 0      ; release; pull-up takes the line high
//	    wait 0 pin 0        ; sensor response: 80 us low
//	    wait 1 pin 0        ;                  80 us high
//	    set x, 4            ; 5 bytes
//	byte_loop:
//	    set y, 7            ; 8 bits
//	bit_loop:
//	    wait 0 pin 0
//	    wait 1 pin 0
//	    nop [11]
//	    in pins, 1          ; autopush every 16 bits
//	    jmp y-- bit_loop
//	    jmp x-- byte_loop
//	    push block          ; trailing checksum byte
//	    irq wait 0          ; hold until the CPU has drained the FIFO
//	.wrap
const (
	dht22WrapTarget = 0
	dht22Wrap       = 17
)

var dht22Instructions = []uint16{
	0x80a0, //  0: pull   block
	0xe000, //  1: set    pins, 0
	0xe081, //  2: set    pindirs, 1
	0xa027, //  3: mov    x, osr
	0x0044, //  4: jmp    x--, 4
	0xe080, //  5: set    pindirs, 0
	0x2020, //  6: wait   0 pin, 0
	0x20a0, //  7: wait   1 pin, 0
	0xe024, //  8: set    x, 4
	0xe047, //  9: set    y, 7
	0x2020, // 10: wait   0 pin, 0
	0x20a0, // 11: wait   1 pin, 0
	0xab42, // 12: nop    [11]
	0x4001, // 13: in     pins, 1
	0x008a, // 14: jmp    y--, 10
	0x0049, // 15: jmp    x--, 9
	0x8020, // 16: push   block
	0xc020, // 17: irq    wait 0
}

// 125 MHz / 416.67 = 300 kHz.
const (
	dht22ClkDivInt  = 416
	dht22ClkDivFrac = 171
)

// IRQ0_INTE bit for state machine IRQ flag 0.
const pioInteSM0 = 1 << 8

// PIOEngine runs the acquisition on a PIO0 state machine and routes the
// program's IRQ 0 to the completion callback.
type PIOEngine struct {
	pio    *pio.PIO
	sm     pio.StateMachine
	offset uint8
	pin    machine.Pin
	cfg    pio.StateMachineConfig

	onComplete func()
}

// Only PIO0 IRQ0 is wired; one engine per program image.
var pio0Engine *PIOEngine

// NewPIOEngine returns an unconfigured engine on PIO0.
func NewPIOEngine() *PIOEngine { return &PIOEngine{pio: pio.PIO0} }

func (e *PIOEngine) Configure(pin uint8, onComplete func()) error {
	if pio0Engine != nil {
		return ErrAlreadyInitialized
	}
	offset, err := e.pio.AddProgram(dht22Instructions, -1)
	if err != nil {
		return err
	}
	sm, err := e.pio.ClaimStateMachine()
	if err != nil {
		return err
	}
	e.sm, e.offset, e.pin, e.onComplete = sm, offset, machine.Pin(pin), onComplete

	cfg := pio.DefaultStateMachineConfig()
	cfg.SetWrap(offset+dht22WrapTarget, offset+dht22Wrap)
	cfg.SetSetPins(e.pin, 1)
	cfg.SetInPins(e.pin)
	cfg.SetInShift(false, true, 16)
	cfg.SetClkDivIntFrac(dht22ClkDivInt, dht22ClkDivFrac)
	e.cfg = cfg

	e.pin.Configure(machine.PinConfig{Mode: e.pio.PinMode()})
	e.initSM()

	pio0Engine = e
	e.pio.HW().IRQ_INT[0].E.SetBits(pioInteSM0)
	intr := interrupt.New(rp.IRQ_PIO0_IRQ_0, pio0IRQ)
	intr.Enable()
	return nil
}

func (e *PIOEngine) initSM() {
	e.sm.SetEnabled(false)
	e.sm.ClearFIFOs()
	e.sm.SetPindirsConsecutive(e.pin, 1, false)
	e.sm.Init(e.offset, e.cfg)
	e.sm.SetEnabled(true)
}

func pio0IRQ(interrupt.Interrupt) {
	e := pio0Engine
	if e == nil {
		return
	}
	e.onComplete()
	// Clearing the flag lets the program leave `irq wait 0`.
	e.pio.HW().IRQ.Set(1)
}

func (e *PIOEngine) IssueStart(ticks uint32) { e.sm.TxPut(ticks) }

func (e *PIOEngine) QueueDepth() int { return int(e.sm.RxFIFOLevel()) }

func (e *PIOEngine) DrainWords(dst []uint16) int {
	n := 0
	for n < len(dst) && !e.sm.IsRxFIFOEmpty() {
		dst[n] = uint16(e.sm.RxGet())
		n++
	}
	return n
}

func (e *PIOEngine) ClearQueue() { e.sm.ClearFIFOs() }

// ReinitializeSequencer restarts the program at pull block. A pending IRQ
// flag from the abandoned cycle is cleared so it cannot fire later.
func (e *PIOEngine) ReinitializeSequencer() {
	e.initSM()
	e.pio.HW().IRQ.Set(1)
}
