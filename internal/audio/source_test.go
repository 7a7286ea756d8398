// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, name string, channels, bitDepth int, data []int) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	f, err := os.Create(filename)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, testSampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: testSampleRate},
		SourceBitDepth: bitDepth,
		Data:           data,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestOpenSourceWAV(t *testing.T) {
	filename := writeWAV(t, "tone.WAV", 2, 16, []int{0, 16384, -16384, 32767, -32768, 0})

	src, err := OpenSource(filename)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	if src.Channels() != 2 || src.SampleRate() != testSampleRate {
		t.Errorf("format = %dch %dHz", src.Channels(), src.SampleRate())
	}

	dst := make([]float32, 16)
	n, err := readFull(src, dst)
	if !errors.Is(err, io.EOF) {
		t.Errorf("readFull error = %v, want EOF", err)
	}
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768, -1, 0}
	if n != len(want) {
		t.Fatalf("read %d samples, want %d", n, len(want))
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestOpenSourceErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(garbage, []byte("not a wave file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		is   error
	}{
		{"Missing file", filepath.Join(dir, "missing.wav"), os.ErrNotExist},
		{"Unknown extension", text, ErrUnsupportedFormat},
		{"Invalid WAV", garbage, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenSource(tt.path)
			if !errors.Is(err, tt.is) {
				t.Errorf("OpenSource error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestOpenSourceInvalidMP3(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "bad.mp3")
	if err := os.WriteFile(filename, []byte{0, 1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenSource(filename); err == nil {
		t.Error("OpenSource should reject a corrupt MP3")
	}
}

func TestOpenSourceInvalidOgg(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "bad.ogg")
	if err := os.WriteFile(filename, []byte("OggS but not really"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenSource(filename); err == nil {
		t.Error("OpenSource should reject a corrupt Ogg file")
	}
}
