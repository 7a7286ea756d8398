/*
Package bitint provides the power-of-two helpers used to size audio
buffers. All functions are allocation free and safe on the audio path.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Sizes <= 0
// yield 1. Subtracting one first keeps exact powers of two unchanged.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// FramesFor returns the number of whole frames a buffer of the given
// duration holds at rate, rounded up to a power of two. Output backends use
// it to pick callback sizes.
func FramesFor(rate int, seconds float64) int {
	frames := int(float64(rate) * seconds)
	return NextPowerOfTwo(frames)
}
