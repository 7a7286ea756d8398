// SPDX-License-Identifier: MIT
/*
Package audio implements the playback host the fade effect runs in:
- File sources decoded from WAV, MP3 and Ogg Vorbis
- An ordered effect chain driven from the real-time render callback
- PortAudio and oto output sinks
- WAV recording of the processed output

Thread Safety:
- Render runs on the backend's audio thread and never blocks
- Playback state is held in atomics
- StopPlayback only signals; the control loop observes Done()
*/
package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	applog "fadeout/internal/log"
)

// Effect is a stage of the processing chain. Process and Finish may modify
// buf in place and return it.
type Effect interface {
	Start(channels, rate int)
	Process(buf []float32) []float32
	Finish(buf []float32, endOfPlaylist bool) []float32
	Flush()
}

// Meter observes every processed buffer on the audio thread.
type Meter interface {
	Observe(buf []float32)
}

// Sink pulls rendered audio from the engine.
type Sink interface {
	Start(render func(out []float32)) error
	Stop() error
}

// Engine plays a single Source through an effect chain into a Sink.
type Engine struct {
	source   Source
	sink     Sink
	channels int
	rate     int

	effects []Effect
	meters  []Meter

	recorder atomic.Pointer[Recorder]
	rendered atomic.Int64 // Samples delivered to the sink

	started  atomic.Bool
	playing  atomic.Bool
	finished atomic.Bool

	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

// NewEngine creates an engine for src. The sink must be configured for the
// source's channel count and sample rate.
func NewEngine(src Source, sink Sink) *Engine {
	return &Engine{
		source:   src,
		sink:     sink,
		channels: src.Channels(),
		rate:     src.SampleRate(),
		done:     make(chan struct{}),
	}
}

// ResolveSampleRate returns the output rate for src. A configured rate of 0
// follows the source; any other value must match it.
func ResolveSampleRate(src Source, configured float64) (float64, error) {
	rate := float64(src.SampleRate())
	if configured == 0 || configured == rate {
		return rate, nil
	}
	return 0, fmt.Errorf("%w: source %.0f Hz, output %.0f Hz", ErrRateMismatch, rate, configured)
}

// AddEffect appends fx to the chain. Effects must be added before Play.
func (e *Engine) AddEffect(fx Effect) {
	e.effects = append(e.effects, fx)
}

// AddMeter registers m to observe the processed output. Meters must be
// added before Play.
func (e *Engine) AddMeter(m Meter) {
	e.meters = append(e.meters, m)
}

func (e *Engine) Channels() int   { return e.channels }
func (e *Engine) SampleRate() int { return e.rate }

// Position returns the playback position of the rendered audio.
func (e *Engine) Position() time.Duration {
	frames := e.rendered.Load() / int64(e.channels)
	return time.Duration(frames) * time.Second / time.Duration(e.rate)
}

// Play starts the effects and the sink.
func (e *Engine) Play() error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	for _, fx := range e.effects {
		fx.Start(e.channels, e.rate)
	}
	e.playing.Store(true)

	if err := e.sink.Start(e.Render); err != nil {
		e.StopPlayback()
		return fmt.Errorf("failed to start output: %w", err)
	}
	applog.Infof("Playing %d channel(s) at %d Hz", e.channels, e.rate)
	return nil
}

// IsPlaying reports whether playback is running.
func (e *Engine) IsPlaying() bool {
	return e.playing.Load()
}

// StopPlayback stops playback. It is idempotent and never blocks; the sink
// keeps rendering silence until Close.
func (e *Engine) StopPlayback() {
	e.playing.Store(false)
	e.stopOnce.Do(func() {
		close(e.done)
	})
}

// Done is closed once playback stops, at end of stream or on request.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Render fills out with the next processed samples. It is the body of the
// sink's real-time callback.
func (e *Engine) Render(out []float32) {
	if len(out) == 0 {
		return
	}
	if !e.playing.Load() {
		clear(out)
		e.finish(out[:0])
		return
	}

	n, err := readFull(e.source, out)
	clear(out[n:])
	if err != nil {
		if !errors.Is(err, io.EOF) {
			applog.Errorf("Decoding failed: %v", err)
		}
		e.finish(out[:n])
		e.deliver(out[:n])
		e.StopPlayback()
		return
	}

	buf := out
	for _, fx := range e.effects {
		buf = fx.Process(buf)
	}
	if len(buf) > 0 && &buf[0] != &out[0] {
		clear(out[copy(out, buf):])
	}
	e.deliver(out)
}

// finish hands the last buffer of the stream to every effect, once.
func (e *Engine) finish(buf []float32) {
	if !e.finished.CompareAndSwap(false, true) {
		return
	}
	for _, fx := range e.effects {
		buf = fx.Finish(buf, true)
	}
}

func (e *Engine) deliver(buf []float32) {
	e.rendered.Add(int64(len(buf)))
	for _, m := range e.meters {
		m.Observe(buf)
	}
	if r := e.recorder.Load(); r != nil {
		if err := r.Write(buf); err != nil {
			applog.Errorf("Error writing to WAV file: %v", err)
		}
	}
}

// StartRecording writes the processed output to filename as WAV.
func (e *Engine) StartRecording(filename string, bitDepth, framesPerBuffer int) error {
	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}
	r, err := NewRecorder(filename, e.rate, e.channels, bitDepth, framesPerBuffer)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, r) {
		r.Close()
		return ErrAlreadyRecording
	}
	applog.Infof("Recording to %s", filename)
	return nil
}

// StopRecording finalizes the recording, if any.
func (e *Engine) StopRecording() error {
	r := e.recorder.Swap(nil)
	if r == nil {
		return nil
	}
	if err := r.Close(); err != nil {
		return err
	}
	applog.Infof("Recorded %d frames to %s", r.Frames(), r.Name())
	return nil
}

// Close stops playback and the sink, finishes the effects if the stream
// never reached its end, and releases the recorder and source.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.StopPlayback()

		var errs []error
		if e.started.Load() {
			errs = append(errs, e.sink.Stop())
		}
		e.finish(nil)
		errs = append(errs, e.StopRecording(), e.source.Close())
		err = errors.Join(errs...)
	})
	return err
}
