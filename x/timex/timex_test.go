package timex

import (
	"testing"
	"time"
)

func TestResetTimerAfterFire(t *testing.T) {
	tm := time.NewTimer(time.Millisecond)
	time.Sleep(5 * time.Millisecond) // let it fire without reading C

	ResetTimer(tm, 20*time.Millisecond)
	select {
	case <-tm.C:
		t.Fatal("stale fire delivered after reset")
	case <-time.After(5 * time.Millisecond):
	}
	select {
	case <-tm.C:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer did not fire after reset")
	}
}

func TestMillis(t *testing.T) {
	if got := Millis(0, 15*time.Millisecond); got != 15*time.Millisecond {
		t.Fatalf("default: got %v", got)
	}
	if got := Millis(2500, 0); got != 2500*time.Millisecond {
		t.Fatalf("explicit: got %v", got)
	}
}
