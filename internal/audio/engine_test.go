// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"testing"
	"time"
)

const (
	testSampleRate = 48000
	testFrameSize  = 8
)

func ramp(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i+1) / float32(n)
	}
	return s
}

func newTestEngine(t *testing.T, samples []float32) (*Engine, *sliceSource, *pullSink) {
	t.Helper()
	src := newSliceSource(samples, 2, testSampleRate)
	sink := &pullSink{}
	e := NewEngine(src, sink)
	t.Cleanup(func() { e.Close() })
	return e, src, sink
}

func TestEnginePlayStartsEffects(t *testing.T) {
	e, _, sink := newTestEngine(t, ramp(64))
	fx := &scaleEffect{gain: 1}
	e.AddEffect(fx)

	if e.IsPlaying() {
		t.Fatal("engine should not play before Play")
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !e.IsPlaying() || !sink.started.Load() {
		t.Fatal("Play should start playback and the sink")
	}
	if fx.channels != 2 || fx.rate != testSampleRate {
		t.Errorf("effect started with (%d, %d)", fx.channels, fx.rate)
	}
	if err := e.Play(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Play error = %v, want %v", err, ErrAlreadyStarted)
	}
}

func TestEngineRenderRunsChainInOrder(t *testing.T) {
	samples := ramp(32)
	e, _, sink := newTestEngine(t, samples)
	e.AddEffect(&scaleEffect{gain: 0.5})
	e.AddEffect(copyEffect{offset: 1})
	meter := &countingMeter{}
	e.AddMeter(meter)

	if err := e.Play(); err != nil {
		t.Fatal(err)
	}
	out := sink.pull(testFrameSize * 2)
	for i, s := range out {
		if want := samples[i]*0.5 + 1; s != want {
			t.Errorf("sample %d = %v, want %v", i, s, want)
		}
	}
	if meter.samples != len(out) {
		t.Errorf("meter saw %d samples, want %d", meter.samples, len(out))
	}
	if got, want := e.Position(), time.Duration(testFrameSize)*time.Second/testSampleRate; got != want {
		t.Errorf("Position() = %v, want %v", got, want)
	}
}

func TestEngineEndOfStream(t *testing.T) {
	e, _, sink := newTestEngine(t, ramp(20))
	fx := &scaleEffect{gain: 1}
	e.AddEffect(fx)
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}

	sink.pull(16)
	out := sink.pull(16)

	if fx.finishes != 1 || fx.finishLen != 4 || !fx.endOfList {
		t.Errorf("Finish calls=%d len=%d end=%v, want 1, 4, true", fx.finishes, fx.finishLen, fx.endOfList)
	}
	for i, s := range out[4:] {
		if s != 0 {
			t.Fatalf("tail sample %d = %v, want silence", i+4, s)
		}
	}

	select {
	case <-e.Done():
	default:
		t.Fatal("Done should close at end of stream")
	}
	if e.IsPlaying() {
		t.Error("engine still playing after end of stream")
	}

	// Later callbacks render silence without finishing again.
	out = sink.pull(16)
	for _, s := range out {
		if s != 0 {
			t.Fatal("stopped engine rendered sound")
		}
	}
	if fx.finishes != 1 {
		t.Errorf("Finish called %d times, want 1", fx.finishes)
	}
}

func TestEngineDecodeError(t *testing.T) {
	e, src, sink := newTestEngine(t, ramp(4))
	src.err = errors.New("corrupt frame")
	fx := &scaleEffect{gain: 1}
	e.AddEffect(fx)
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}

	sink.pull(8)
	if e.IsPlaying() || fx.finishes != 1 {
		t.Error("a decode error should end the stream")
	}
}

func TestEngineStopPlayback(t *testing.T) {
	e, _, sink := newTestEngine(t, ramp(1024))
	fx := &scaleEffect{gain: 1}
	e.AddEffect(fx)
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}

	e.StopPlayback()
	e.StopPlayback()

	select {
	case <-e.Done():
	default:
		t.Fatal("Done should close on StopPlayback")
	}
	out := sink.pull(16)
	for _, s := range out {
		if s != 0 {
			t.Fatal("stopped engine rendered sound")
		}
	}
	if fx.finishes != 1 || fx.finishLen != 0 {
		t.Errorf("stop should finish the effects once with an empty buffer, got %d calls len %d",
			fx.finishes, fx.finishLen)
	}
}

func TestEngineClose(t *testing.T) {
	e, src, sink := newTestEngine(t, ramp(64))
	fx := &scaleEffect{gain: 1}
	e.AddEffect(fx)
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sink.stopped.Load() || !src.closed.Load() {
		t.Error("Close should stop the sink and close the source")
	}
	if fx.finishes != 1 {
		t.Errorf("Close should finish an unfinished stream, got %d calls", fx.finishes)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestEngineSinkFailure(t *testing.T) {
	src := newSliceSource(ramp(8), 1, testSampleRate)
	e := NewEngine(src, &pullSink{err: errors.New("no device")})
	defer e.Close()

	if err := e.Play(); err == nil {
		t.Fatal("Play should report the sink error")
	}
	if e.IsPlaying() {
		t.Error("engine should not play after a sink failure")
	}
}

func TestResolveSampleRate(t *testing.T) {
	src := newSliceSource(nil, 2, 44100)

	tests := []struct {
		name       string
		configured float64
		want       float64
		wantErr    bool
	}{
		{"Follow source", 0, 44100, false},
		{"Matching", 44100, 44100, false},
		{"Mismatch", 48000, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSampleRate(src, tt.configured)
			if got != tt.want || (err != nil) != tt.wantErr {
				t.Errorf("ResolveSampleRate(%v) = %v, %v", tt.configured, got, err)
			}
			if tt.wantErr && !errors.Is(err, ErrRateMismatch) {
				t.Errorf("error = %v, want %v", err, ErrRateMismatch)
			}
		})
	}
}

func TestEngineRenderHotPathAllocations(t *testing.T) {
	src := newSliceSource(make([]float32, 1<<20), 2, testSampleRate)
	sink := &pullSink{}
	e := NewEngine(src, sink)
	defer e.Close()
	e.AddEffect(&scaleEffect{gain: 0.5})
	e.AddMeter(&countingMeter{})
	if err := e.Play(); err != nil {
		t.Fatal(err)
	}

	out := make([]float32, 512)
	allocs := testing.AllocsPerRun(100, func() {
		e.Render(out)
	})
	if allocs > 0 {
		t.Errorf("Render allocated %.1f times per run", allocs)
	}
}

func BenchmarkEngineRender(b *testing.B) {
	src := newSliceSource(make([]float32, 1<<16), 2, testSampleRate)
	src.loop = true
	e := NewEngine(src, &pullSink{})
	defer e.Close()
	e.AddEffect(&scaleEffect{gain: 0.5})
	if err := e.Play(); err != nil {
		b.Fatal(err)
	}
	out := make([]float32, 1024)

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		e.Render(out)
	}
}
