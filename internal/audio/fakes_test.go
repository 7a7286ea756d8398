// SPDX-License-Identifier: MIT
package audio

import (
	"io"
	"sync/atomic"
)

// sliceSource plays a fixed sample slice.
type sliceSource struct {
	samples  []float32
	pos      int
	channels int
	rate     int
	err      error // Returned instead of io.EOF when set
	loop     bool
	closed   atomic.Bool
}

func newSliceSource(samples []float32, channels, rate int) *sliceSource {
	return &sliceSource{samples: samples, channels: channels, rate: rate}
}

func (s *sliceSource) SampleRate() int { return s.rate }
func (s *sliceSource) Channels() int   { return s.channels }

func (s *sliceSource) ReadSamples(dst []float32) (int, error) {
	if s.loop && s.pos >= len(s.samples) {
		s.pos = 0
	}
	if s.pos >= len(s.samples) {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n := copy(dst, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

func (s *sliceSource) Close() error {
	s.closed.Store(true)
	return nil
}

// pullSink renders only when the test asks for a buffer.
type pullSink struct {
	render  func(out []float32)
	started atomic.Bool
	stopped atomic.Bool
	err     error
}

func (s *pullSink) Start(render func(out []float32)) error {
	if s.err != nil {
		return s.err
	}
	s.render = render
	s.started.Store(true)
	return nil
}

func (s *pullSink) Stop() error {
	s.stopped.Store(true)
	return nil
}

func (s *pullSink) pull(n int) []float32 {
	out := make([]float32, n)
	s.render(out)
	return out
}

// scaleEffect multiplies samples and records the hook calls it receives.
type scaleEffect struct {
	gain      float32
	channels  int
	rate      int
	finishes  int
	finishLen int
	endOfList bool
}

func (f *scaleEffect) Start(channels, rate int) { f.channels, f.rate = channels, rate }

func (f *scaleEffect) Process(buf []float32) []float32 {
	for i := range buf {
		buf[i] *= f.gain
	}
	return buf
}

func (f *scaleEffect) Finish(buf []float32, endOfPlaylist bool) []float32 {
	f.finishes++
	f.finishLen = len(buf)
	f.endOfList = endOfPlaylist
	return f.Process(buf)
}

func (f *scaleEffect) Flush() {}

// copyEffect returns a new slice instead of working in place.
type copyEffect struct{ offset float32 }

func (f copyEffect) Start(int, int) {}
func (f copyEffect) Flush()         {}

func (f copyEffect) Process(buf []float32) []float32 {
	out := make([]float32, len(buf))
	for i, s := range buf {
		out[i] = s + f.offset
	}
	return out
}

func (f copyEffect) Finish(buf []float32, _ bool) []float32 { return f.Process(buf) }

type countingMeter struct{ samples int }

func (m *countingMeter) Observe(buf []float32) { m.samples += len(buf) }
