// Package mathx holds small generic helpers for fixed-point firmware maths.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. Swapped bounds are accepted.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	return min(max(v, lo), hi)
}

// Between reports lo <= v <= hi, in either bound order.
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// RoundDiv is a/b rounded half up. b == 0 yields 0.
func RoundDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b/2) / b
}
