// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes interleaved float samples to a PCM WAV file.
type Recorder struct {
	mu       sync.Mutex
	name     string
	file     *os.File
	encoder  *wav.Encoder
	buf      *audio.IntBuffer
	scale    float32
	channels int
	closed   bool

	frames atomic.Int64
}

// DefaultRecordingName returns the file name used when none is configured.
func DefaultRecordingName(now time.Time) string {
	return now.Format("recording-02-01-2006-150405.wav")
}

// NewRecorder creates filename and prepares a 16 or 24-bit encoder.
func NewRecorder(filename string, sampleRate, channels, bitDepth, framesPerBuffer int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("%w: %d-bit recording", ErrUnsupportedFormat, bitDepth)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		name:     filename,
		file:     file,
		encoder:  wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		scale:    float32(int32(1)<<(bitDepth-1) - 1),
		channels: channels,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: bitDepth,
			Data:           make([]int, framesPerBuffer*channels),
		},
	}, nil
}

// Name returns the output file name.
func (r *Recorder) Name() string { return r.name }

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int64 { return r.frames.Load() }

// Write encodes samples. It is called from the audio thread and skips the
// buffer rather than wait while the recorder is being closed.
func (r *Recorder) Write(samples []float32) error {
	if len(samples) == 0 || !r.mu.TryLock() {
		return nil
	}
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		s = max(-1, min(1, s))
		r.buf.Data[i] = int(s * r.scale)
	}

	if err := r.encoder.Write(r.buf); err != nil {
		return err
	}
	r.frames.Add(int64(len(samples) / r.channels))
	return nil
}

// Close writes the WAV header and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.encoder.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
