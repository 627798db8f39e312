// Package clock provides the wrapping millisecond timestamp used for all
// protocol timing. Comparisons go through Since so that a wrap of the
// counter is invisible; timestamps must never be compared for absolute order.
package clock

import "time"

// Millis is a monotonic millisecond timestamp. It wraps.
type Millis uint32

// Since returns now - then in milliseconds, correct across wrap as long as
// the real interval fits in 31 bits (~24 days).
func Since(now, then Millis) int32 {
	return int32(now - then)
}

// After reports whether at least d milliseconds have elapsed between then
// and now.
func After(now, then Millis, d int32) bool {
	return Since(now, then) >= d
}

// FromTime converts a time.Time to a Millis timestamp. The absolute value is
// meaningless; only differences matter.
func FromTime(t time.Time) Millis {
	return Millis(t.UnixMilli())
}
