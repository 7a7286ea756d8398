// SPDX-License-Identifier: MIT
package fade

// Attenuate divides every sample of buf by attenuation in place. At Identity
// the buffer is left untouched so no rounding is introduced.
//
// Performance Critical (Hot Path):
// - No allocations
// - One comparison when no fade is active
func Attenuate(buf []float32, attenuation float64) {
	if attenuation == Identity {
		return
	}
	for i, s := range buf {
		buf[i] = float32(float64(s) / attenuation)
	}
}
