// SPDX-License-Identifier: MIT
//
// Package utils provides signal generators shared by the package tests.
package utils

import "math"

// SineWave returns frames of an interleaved sine at frequency with the same
// signal on every channel.
func SineWave(frames int, sampleRate, frequency float64, channels int, amplitude float64) []float32 {
	buffer := make([]float32, frames*channels)
	for i := range frames {
		t := float64(i) / sampleRate
		v := float32(math.Sin(2*math.Pi*frequency*t) * amplitude)
		for c := range channels {
			buffer[i*channels+c] = v
		}
	}
	return buffer
}

// ComplexWave returns a mono 440Hz fundamental with two harmonics, peaking
// below full scale.
func ComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// Constant returns n samples of value v.
func Constant(n int, v float32) []float32 {
	buffer := make([]float32, n)
	for i := range buffer {
		buffer[i] = v
	}
	return buffer
}

// Peak returns the largest absolute sample in buf.
func Peak(buf []float32) float32 {
	var peak float32
	for _, s := range buf {
		peak = max(peak, s, -s)
	}
	return peak
}
