// Package conv formats numbers into caller-owned buffers without fmt,
// strconv or allocation. Each function fills buf from the end and returns
// the used tail; a buffer that is too small yields a truncated result.
package conv

// Utoa writes n in base 10. 20 bytes fit any uint64.
func Utoa(buf []byte, n uint64) []byte {
	i := len(buf)
	if i == 0 {
		return buf
	}
	for {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
		if n == 0 || i == 0 {
			return buf[i:]
		}
	}
}

// Itoa writes n in base 10 with a leading '-' when negative.
func Itoa(buf []byte, n int64) []byte {
	if n >= 0 {
		return Utoa(buf, uint64(n))
	}
	s := Utoa(buf, uint64(-n))
	i := len(buf) - len(s)
	if i == 0 {
		return s
	}
	buf[i-1] = '-'
	return buf[i-1:]
}

var pow10 = [...]int64{1, 10, 100, 1000, 10000}

// Fixed writes a fixed-point value scaled by 10^frac, e.g. Fixed(b, -32, 1)
// is "-3.2" and Fixed(b, 4550, 2) is "45.50". frac is limited to 0..4.
func Fixed(buf []byte, v int64, frac int) []byte {
	if frac <= 0 {
		return Itoa(buf, v)
	}
	if frac >= len(pow10) {
		frac = len(pow10) - 1
	}
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	scale := uint64(pow10[frac])

	i := len(buf)
	f := u % scale
	for d := 0; d < frac && i > 0; d++ {
		i--
		buf[i] = byte('0' + f%10)
		f /= 10
	}
	if i == 0 {
		return buf
	}
	i--
	buf[i] = '.'
	i -= len(Utoa(buf[:i], u/scale))
	if neg && i > 0 {
		i--
		buf[i] = '-'
	}
	return buf[i:]
}

const hexd = "0123456789ABCDEF"

// Hex16 writes 4-digit uppercase hex without 0x, zero-padded.
func Hex16(buf []byte, n uint16) []byte {
	if len(buf) < 4 {
		return buf[:0]
	}
	i := len(buf)
	for j := 0; j < 4; j++ {
		i--
		buf[i] = hexd[n&0xF]
		n >>= 4
	}
	return buf[i:]
}
