package monitor

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

func waitLines(t *testing.T, out *syncBuf, n int) []string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		lines := strings.Split(strings.TrimSuffix(out.String(), "\r\n"), "\r\n")
		if out.String() != "" && len(lines) >= n {
			return lines
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %q", out.String())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPrintsValuesAndLinkChanges(t *testing.T) {
	b := bus.NewBus(16)
	c := b.NewConnection("test")
	out := &syncBuf{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := New(out).Start(ctx, b.NewConnection("monitor")); err != nil {
		t.Fatal(err)
	}

	base := bus.T("hal", "cap", "env")
	up := types.CapabilityStatus{Link: types.LinkUp}
	c.Publish(c.NewMessage(base.Append("temperature", "dht0", "value"), types.TemperatureValue{DeciC: -32}, true))
	c.Publish(c.NewMessage(base.Append("humidity", "dht0", "value"), types.HumidityValue{RHx100: 4550}, true))
	c.Publish(c.NewMessage(base.Append("temperature", "dht0", "status"), up, true))
	c.Publish(c.NewMessage(base.Append("temperature", "dht0", "status"), up, true)) // unchanged
	c.Publish(c.NewMessage(base.Append("temperature", "dht0", "status"),
		types.CapabilityStatus{Link: types.LinkDown, Error: "sensor_fault"}, true))
	c.Publish(c.NewMessage(base.Append("temperature", "dht0", "info"), types.Info{Driver: "dht22"}, true))

	want := []string{
		"dht0 temperature: -3.2C",
		"dht0 humidity: 45.50%",
		"dht0 temperature: link up",
		"dht0 temperature: link down (sensor_fault)",
	}
	lines := waitLines(t, out, len(want))
	time.Sleep(10 * time.Millisecond)
	lines = waitLines(t, out, len(want))
	if len(lines) != len(want) {
		t.Fatalf("lines %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: %q, want %q", i, lines[i], want[i])
		}
	}
}
