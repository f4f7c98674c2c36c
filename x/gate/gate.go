// Package gate provides a single-slot completion gate shared between an
// interrupt-side producer and a blocking consumer.
//
// The gate has three states, Ready, Busy and Held, and a generation counter.
// All of them live in one atomic word so every transition is a single
// compare-and-swap:
//
//	ClaimIfReady   Ready(g)      -> Busy(g)      start of a cycle
//	Hold(g)        Busy(g)       -> Held(g)      completion side, before draining
//	ReleaseIf(g)   Busy|Held(g)  -> Ready(g)     completion side
//	Abandon(g)     Busy(g)       -> Busy(g+1)    timeout side, before a reset
//	Invalidate     any(g)        -> Busy|Ready(g+1)
//	Release        any(g)        -> Ready(g)     consumer fallback
//
// Hold (or ReleaseIf) and Abandon on the same generation race for one CAS, so
// exactly one side owns the cycle. Held counts as Busy for IsReady. Nothing on the release side blocks; the wake-up is a
// non-blocking send on a one-slot channel, which is safe from an ISR.
package gate

import (
	"sync/atomic"
	"time"

	"dhtcode-go/x/timex"
)

const (
	busyBit = 1 << iota
	heldBit
	genShift = iota
)

// Gate is the zero-value-unusable completion gate; use New.
type Gate struct {
	word  atomic.Uint32 // gen<<2 | held | busy
	ready chan struct{}
}

func New() *Gate {
	return &Gate{ready: make(chan struct{}, 1)}
}

func pack(gen uint32, busy bool) uint32 {
	w := gen << genShift
	if busy {
		w |= busyBit
	}
	return w
}

func unpack(w uint32) (gen uint32, busy bool) { return w >> genShift, w&busyBit != 0 }

// Snapshot returns the current generation and whether a cycle is in flight.
func (g *Gate) Snapshot() (gen uint32, busy bool) { return unpack(g.word.Load()) }

// IsReady reports whether no cycle is in flight.
func (g *Gate) IsReady() bool { return g.word.Load()&busyBit == 0 }

// ClaimIfReady moves Ready to Busy and returns the generation of the new
// cycle. ok is false, with no side effects, when the gate is already Busy.
func (g *Gate) ClaimIfReady() (gen uint32, ok bool) {
	for {
		w := g.word.Load()
		gen, busy := unpack(w)
		if busy {
			return gen, false
		}
		if g.word.CompareAndSwap(w, pack(gen, true)) {
			// Drop a wake-up left over from an earlier release.
			select {
			case <-g.ready:
			default:
			}
			return gen, true
		}
	}
}

// Hold takes the in-flight cycle of generation gen for the completion side.
// Once it succeeds Abandon(gen) fails, and only ReleaseIf, Invalidate or
// Release move the gate on.
func (g *Gate) Hold(gen uint32) bool {
	return g.word.CompareAndSwap(pack(gen, true), pack(gen, true)|heldBit)
}

// Held reports whether the completion side holds the current cycle.
func (g *Gate) Held() bool { return g.word.Load()&heldBit != 0 }

// ReleaseIf releases a Busy or Held gate only if it is still on generation gen.
func (g *Gate) ReleaseIf(gen uint32) bool {
	for {
		w := g.word.Load()
		cur, busy := unpack(w)
		if cur != gen || !busy {
			return false
		}
		if g.word.CompareAndSwap(w, pack(gen, false)) {
			g.notify()
			return true
		}
	}
}

// Abandon marks the in-flight cycle of generation gen as lost. It fails when
// the cycle already completed, is held, or the generation moved on.
func (g *Gate) Abandon(gen uint32) bool {
	return g.word.CompareAndSwap(pack(gen, true), pack(gen+1, true))
}

// Invalidate bumps the generation so completions from earlier cycles are
// rejected by ReleaseIf. The busy bit is preserved; a hold is dropped.
func (g *Gate) Invalidate() {
	for {
		w := g.word.Load()
		gen, busy := unpack(w)
		if g.word.CompareAndSwap(w, pack(gen+1, busy)) {
			return
		}
	}
}

// Release forces the gate to Ready. Releasing a Ready gate is a no-op apart
// from a spurious wake-up, which waiters tolerate.
func (g *Gate) Release() {
	for {
		w := g.word.Load()
		gen, busy := unpack(w)
		if !busy {
			return
		}
		if g.word.CompareAndSwap(w, pack(gen, false)) {
			g.notify()
			return
		}
	}
}

// WaitReady blocks until the gate is Ready or timeout elapses. It returns the
// state observed last, so a release racing the deadline is still seen.
func (g *Gate) WaitReady(timeout time.Duration) bool {
	if g.IsReady() {
		return true
	}
	if timeout <= 0 {
		return false
	}
	t := time.NewTimer(timeout)
	defer timex.StopTimer(t)
	for {
		select {
		case <-g.ready:
			if g.IsReady() {
				return true
			}
		case <-t.C:
			return g.IsReady()
		}
	}
}

func (g *Gate) notify() {
	select {
	case g.ready <- struct{}{}:
	default:
	}
}
