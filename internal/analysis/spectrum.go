// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"fadeout/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

var (
	ErrSpectrumSize  = errors.New("analysis: fft size must be a power of 2")
	ErrSpectrumRate  = errors.New("analysis: sample rate must be positive")
	ErrSpectrumBands = errors.New("analysis: band count out of range")
)

const (
	lowestBandHz  = 40.0
	highestBandHz = 16000.0
)

// Spectrum mixes the output down to mono, runs a Hann windowed FFT every
// size samples and keeps the level of log-spaced bands in dBFS.
type Spectrum struct {
	fft      *fourier.FFT
	size     int
	channels int

	// Audio thread only.
	window []float64
	input  []float64
	coeffs []complex128
	fill   int

	mu    sync.Mutex // Protects bands
	edges []int      // len(bands)+1 bin boundaries
	bands []float64
}

// NewSpectrum creates a spectrum analyzer for interleaved audio.
func NewSpectrum(size int, sampleRate float64, channels, bands int) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("%w, got %d", ErrSpectrumSize, size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w, got %f", ErrSpectrumRate, sampleRate)
	}
	if bands < 1 || bands > size/4 {
		return nil, fmt.Errorf("%w: %d", ErrSpectrumBands, bands)
	}

	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1
	}

	s := &Spectrum{
		fft:      fourier.NewFFT(size),
		size:     size,
		channels: max(channels, 1),
		window:   window.Hann(coeffs),
		input:    make([]float64, size),
		coeffs:   make([]complex128, size/2+1),
		edges:    bandEdges(size, sampleRate, bands),
		bands:    make([]float64, bands),
	}
	for i := range s.bands {
		s.bands[i] = MinDB
	}
	return s, nil
}

// bandEdges spaces band boundaries logarithmically between lowestBandHz and
// highestBandHz (or Nyquist). Every band covers at least one bin.
func bandEdges(size int, sampleRate float64, bands int) []int {
	nyquistBin := size / 2
	hi := math.Min(highestBandHz, sampleRate/2)
	binHz := sampleRate / float64(size)

	edges := make([]int, bands+1)
	ratio := math.Pow(hi/lowestBandHz, 1/float64(bands))
	f := lowestBandHz
	for i := range edges {
		bin := int(math.Round(f / binHz))
		if i > 0 {
			bin = max(bin, edges[i-1]+1)
		}
		edges[i] = min(max(bin, 1), nyquistBin)
		f *= ratio
	}
	return edges
}

// Observe consumes interleaved samples. It never blocks: if a reader holds
// the band lock the update is dropped.
func (s *Spectrum) Observe(buf []float32) {
	for i := 0; i+s.channels <= len(buf); i += s.channels {
		var sum float32
		for _, v := range buf[i : i+s.channels] {
			sum += v
		}
		s.input[s.fill] = float64(sum/float32(s.channels)) * s.window[s.fill]
		s.fill++
		if s.fill == s.size {
			s.fill = 0
			s.analyze()
		}
	}
}

func (s *Spectrum) analyze() {
	s.fft.Coefficients(s.coeffs, s.input)

	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()

	// A full scale sine through a Hann window peaks at size/4.
	norm := 4 / float64(s.size)
	for b := range s.bands {
		lo, hi := s.edges[b], s.edges[b+1]
		var peak float64
		for _, c := range s.coeffs[lo:max(hi, lo+1)] {
			peak = math.Max(peak, cmplx.Abs(c))
		}
		s.bands[b] = ToDB(peak * norm)
	}
}

// Bands copies the latest band levels into dst, growing it if needed.
func (s *Spectrum) Bands(dst []float64) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap(dst) < len(s.bands) {
		dst = make([]float64, len(s.bands))
	}
	dst = dst[:len(s.bands)]
	copy(dst, s.bands)
	return dst
}
