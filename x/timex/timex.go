package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// ResetTimer re-arms t for d, draining a pending fire first.
// Negative durations are treated as zero.
func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	StopTimer(t)
	t.Reset(d)
}

// StopTimer stops t and drains its channel if it already fired.
func StopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// Millis converts a millisecond count from config into a Duration,
// falling back to def when ms is zero.
func Millis(ms uint32, def time.Duration) time.Duration {
	if ms == 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
