// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
)

// MinDB is the floor reported for silence.
const MinDB = -90.0

// ToDB converts a linear amplitude to dBFS, floored at MinDB.
func ToDB(amplitude float64) float64 {
	if amplitude <= 0 || math.IsNaN(amplitude) {
		return MinDB
	}
	return max(20*math.Log10(amplitude), MinDB)
}

// LevelMeter tracks the RMS and peak level of the most recent buffer.
// Observe is called from the audio thread; the getters may be called from
// any goroutine.
type LevelMeter struct {
	scratch []float64
	rms     atomic.Uint64
	peak    atomic.Uint64
}

// NewLevelMeter preallocates room for buffers of up to size samples.
func NewLevelMeter(size int) *LevelMeter {
	m := &LevelMeter{scratch: make([]float64, size)}
	m.reset()
	return m
}

func (m *LevelMeter) reset() {
	m.rms.Store(math.Float64bits(MinDB))
	m.peak.Store(math.Float64bits(MinDB))
}

// Observe measures buf. An empty buffer reports silence.
func (m *LevelMeter) Observe(buf []float32) {
	if len(buf) == 0 {
		m.reset()
		return
	}
	if cap(m.scratch) < len(buf) {
		m.scratch = make([]float64, len(buf))
	}
	x := m.scratch[:len(buf)]
	for i, s := range buf {
		x[i] = float64(s)
	}

	rms := floats.Norm(x, 2) / math.Sqrt(float64(len(x)))
	peak := math.Max(floats.Max(x), -floats.Min(x))

	m.rms.Store(math.Float64bits(ToDB(rms)))
	m.peak.Store(math.Float64bits(ToDB(peak)))
}

// LevelDB returns the RMS level of the last buffer in dBFS.
func (m *LevelMeter) LevelDB() float64 {
	return math.Float64frombits(m.rms.Load())
}

// PeakDB returns the peak level of the last buffer in dBFS.
func (m *LevelMeter) PeakDB() float64 {
	return math.Float64frombits(m.peak.Load())
}
