package dht22periph

import (
	"testing"
	"time"

	"dhtcode-go/drivers/dht22"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// trace renders a frame as the edge capture would see it: the sensor's
// response pulses followed by 40 high/low pairs.
func trace(f dht22.RawFrame) ([]gpio.Level, []time.Duration) {
	levels := []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low}
	durations := []time.Duration{20 * time.Microsecond, 80 * time.Microsecond, 80 * time.Microsecond, 50 * time.Microsecond}
	bits := uint64(f.Humidity)<<24 | uint64(f.Temperature)<<8 | uint64(uint8(f.Checksum))
	for i := 39; i >= 0; i-- {
		high := 26 * time.Microsecond
		if bits>>uint(i)&1 == 1 {
			high = 70 * time.Microsecond
		}
		levels = append(levels, gpio.High, gpio.Low)
		durations = append(durations, high, 50*time.Microsecond)
	}
	// Trailing idle high after the final low.
	levels = append(levels, gpio.High)
	durations = append(durations, time.Millisecond)
	return levels, durations
}

func TestDecodeEdges(t *testing.T) {
	want := dht22.EncodeFrame(651, -32)
	levels, durations := trace(want)
	w, ok := decodeEdges(levels, durations)
	if !ok {
		t.Fatal("valid trace rejected")
	}
	if w[0] != want.Humidity || w[1] != want.Temperature || w[2] != want.Checksum {
		t.Fatalf("words %#v, want %+v", w, want)
	}
	r, ok := dht22.Decode(dht22.RawFrame{Humidity: w[0], Temperature: w[1], Checksum: w[2]})
	if !ok || r.DeciCelsius() != -32 {
		t.Fatalf("decoded %+v", r)
	}
}

func TestDecodeEdgesRejectsBadTraces(t *testing.T) {
	levels, durations := trace(dht22.EncodeFrame(500, 200))

	if _, ok := decodeEdges(levels[:60], durations[:60]); ok {
		t.Fatal("truncated trace accepted")
	}

	long := append([]time.Duration(nil), durations...)
	long[10] = 120 * time.Microsecond // a high far past 90 µs
	if _, ok := decodeEdges(levels, long); ok {
		t.Fatal("overlong high accepted")
	}

	short := append([]time.Duration(nil), durations...)
	short[11] = 10 * time.Microsecond // a low under 35 µs
	if _, ok := decodeEdges(levels, short); ok {
		t.Fatal("short low accepted")
	}
}

func TestSilentLineStallsUntilReinitialize(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO4", Num: 4}
	e := New(pin)
	done := make(chan struct{}, 1)
	if err := e.Configure(4, func() { done <- struct{}{} }); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := e.Configure(4, func() {}); err != ErrConfigured {
		t.Fatalf("second Configure: %v", err)
	}

	e.IssueStart(300)
	select {
	case <-done:
		t.Fatal("completion without a sensor")
	case <-time.After(150 * time.Millisecond):
	}
	if e.QueueDepth() != 0 {
		t.Fatal("words queued from a silent line")
	}

	e.ReinitializeSequencer()
	if pin.Read() != gpio.High {
		t.Fatal("line not idling high after reinitialize")
	}
}
