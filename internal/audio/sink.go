// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"fadeout/pkg/bitint"

	"github.com/ebitengine/oto/v3"
	"github.com/gordonklaus/portaudio"
)

// PortAudioSink plays through a PortAudio callback stream.
type PortAudioSink struct {
	device          *portaudio.DeviceInfo
	channels        int
	sampleRate      float64
	framesPerBuffer int
	latency         time.Duration

	stream *portaudio.Stream
}

// NewPortAudioSink opens nothing yet; the stream is created by Start.
// PortAudio must be initialized.
func NewPortAudioSink(deviceID, channels int, sampleRate float64, framesPerBuffer int, lowLatency bool) (*PortAudioSink, error) {
	device, err := OutputDevice(deviceID)
	if err != nil {
		return nil, err
	}
	if device.MaxOutputChannels < channels {
		return nil, fmt.Errorf("device %s supports %d output channels, need %d",
			device.Name, device.MaxOutputChannels, channels)
	}

	s := &PortAudioSink{
		device:          device,
		channels:        channels,
		sampleRate:      sampleRate,
		framesPerBuffer: bitint.NextPowerOfTwo(framesPerBuffer),
		latency:         device.DefaultHighOutputLatency,
	}
	if lowLatency {
		s.latency = device.DefaultLowOutputLatency
	}
	return s, nil
}

func (s *PortAudioSink) Start(render func(out []float32)) error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 0, // No input device
			Device:   nil,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: s.channels,
			Device:   s.device,
			Latency:  s.latency,
		},
		FramesPerBuffer: s.framesPerBuffer,
		SampleRate:      s.sampleRate,
	}

	// Performance Critical: PortAudio calls this on its own thread with a
	// preallocated buffer.
	callback := func(out []float32) {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		render(out)
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return err
	}
	s.stream = stream

	if err := s.stream.Start(); err != nil {
		s.stream.Close()
		s.stream = nil
		return err
	}
	return nil
}

func (s *PortAudioSink) Stop() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return err
	}
	if err := s.stream.Close(); err != nil {
		return err
	}
	s.stream = nil
	return nil
}

// oto allows a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

// OtoSink plays through oto's pull model: the player reads little-endian
// float32 bytes from the sink, which renders on demand.
type OtoSink struct {
	channels int
	render   func(out []float32)
	scratch  []float32
	player   *oto.Player
}

// NewOtoSink creates the shared oto context on first use. framesPerBuffer
// sets the backend buffer size.
func NewOtoSink(channels, sampleRate, framesPerBuffer int) (*OtoSink, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		frames := bitint.NextPowerOfTwo(framesPerBuffer)
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   time.Duration(frames) * time.Second / time.Duration(sampleRate),
		})
		if otoErr == nil {
			<-ready
		}
	})
	if otoErr != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", otoErr)
	}
	return &OtoSink{
		channels: channels,
		scratch:  make([]float32, framesPerBuffer*channels),
	}, nil
}

func (s *OtoSink) Start(render func(out []float32)) error {
	s.render = render
	s.player = otoCtx.NewPlayer(s)
	s.player.Play()
	return nil
}

// Read implements io.Reader for the oto player.
func (s *OtoSink) Read(p []byte) (int, error) {
	frameBytes := 4 * s.channels
	p = p[:len(p)-len(p)%frameBytes]
	n := len(p) / 4
	if n == 0 {
		return 0, nil
	}
	if cap(s.scratch) < n {
		s.scratch = make([]float32, n)
	}
	out := s.scratch[:n]

	s.render(out)
	for i, v := range out {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	return len(p), nil
}

func (s *OtoSink) Stop() error {
	if s.player == nil {
		return nil
	}
	s.player.Pause()
	err := s.player.Close()
	s.player = nil
	return err
}
