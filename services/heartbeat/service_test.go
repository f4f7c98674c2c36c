package heartbeat

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"dhtcode-go/bus"
	"dhtcode-go/types"
)

type syncBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuf) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuf) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestBeatReportsMemoryAndStats(t *testing.T) {
	b := bus.NewBus(8)
	stats := bus.T("hal", "cap", "env", "temperature", "dht0", "control", "stats")

	responder := b.NewConnection("hal")
	req := responder.Subscribe(stats)
	go func() {
		for m := range req.Channel() {
			responder.Reply(m, types.DHT22Stats{Status: "DECODED", Cycles: 12, Decoded: 11, Timeouts: 1}, false)
		}
	}()
	defer responder.Unsubscribe(req)

	out := &syncBuf{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := b.NewConnection("cfg")
	cfg.Publish(cfg.NewMessage(bus.T("config", "heartbeat"), Config{IntervalMs: 10}, true))
	if err := New(out, stats).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for !strings.Contains(out.String(), "[dht22] DECODED cycles:12 ok:11 csum:0 short:0 timeouts:1 consec:0\r\n") {
		select {
		case <-deadline:
			t.Fatalf("got %q", out.String())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !strings.Contains(out.String(), "[mem] alloc:") {
		t.Fatalf("no memory line in %q", out.String())
	}
}

func TestMissingResponderOnlyReportsMemory(t *testing.T) {
	b := bus.NewBus(8)
	s := New(&syncBuf{}, nil)
	out := s.out.(*syncBuf)
	s.beat(context.Background(), b.NewConnection("heartbeat"))
	if got := out.String(); !strings.HasPrefix(got, "[mem] alloc:") || strings.Contains(got, "[dht22]") {
		t.Fatalf("got %q", got)
	}
}
