package core

import (
	"context"
	"testing"
	"time"

	"dhtcode-go/types"
)

func spec(name string, every uint32) types.PollSpec {
	return types.PollSpec{Domain: "env", Kind: types.KindTemperature, Name: name, Verb: "read", IntervalMs: every}
}

func TestPollerFiresOnSchedule(t *testing.T) {
	out := make(chan PollReq, 8)
	p := NewPoller(out)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Upsert(spec("a", 5))
	for i := 0; i < 3; i++ {
		select {
		case req := <-out:
			if req.Addr.Name != "a" || req.Verb != "read" || req.Addr.Kind != "temperature" {
				t.Fatalf("req %+v", req)
			}
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("fire %d missing", i)
		}
	}
}

func TestPollerIgnoresInvalidAndStops(t *testing.T) {
	out := make(chan PollReq, 8)
	p := NewPoller(out)
	p.Upsert(spec("zero", 0))
	p.Upsert(types.PollSpec{Name: "noverb", IntervalMs: 10})
	if p.Len() != 0 {
		t.Fatalf("invalid specs scheduled: %d", p.Len())
	}

	p.Upsert(spec("a", 5))
	p.Upsert(spec("a", 50)) // update, not a second schedule
	if p.Len() != 1 {
		t.Fatalf("len %d", p.Len())
	}
	p.Stop(CapAddr{Domain: "env", Kind: "temperature", Name: "a"}, "read")
	if p.Len() != 0 {
		t.Fatalf("len %d after Stop", p.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	select {
	case req := <-out:
		t.Fatalf("stopped schedule fired: %+v", req)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestPollerBumpDefersNextFire(t *testing.T) {
	out := make(chan PollReq, 8)
	p := NewPoller(out)
	p.Upsert(spec("a", 40))
	// Pretend a value was just emitted; next fire is ~40 ms from now.
	p.BumpAfter(CapAddr{Domain: "env", Kind: "temperature", Name: "a"}, "read", time.Now().UnixNano())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	t0 := time.Now()
	select {
	case <-out:
		if el := time.Since(t0); el < 30*time.Millisecond {
			t.Fatalf("fired after %v", el)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("no fire")
	}
}
