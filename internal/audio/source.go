// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Source delivers interleaved float32 samples in [-1, 1].
type Source interface {
	SampleRate() int
	Channels() int
	// ReadSamples fills dst and returns the number of float32 values
	// written. io.EOF is returned once the stream is exhausted.
	ReadSamples(dst []float32) (int, error)
	Close() error
}

// OpenSource opens path with the decoder matching its extension.
func OpenSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var src Source
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		src, err = newWavSource(f)
	case ".mp3":
		src, err = newMP3Source(f)
	case ".ogg", ".oga":
		src, err = newVorbisSource(f)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if src.Channels() <= 0 || src.SampleRate() <= 0 {
		src.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, ErrInvalidSource)
	}
	return src, nil
}

// readFull reads from src until dst is full or the stream ends. It returns
// io.EOF together with the final partial count.
func readFull(src Source, dst []float32) (int, error) {
	n := 0
	for n < len(dst) {
		m, err := src.ReadSamples(dst[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, io.EOF
		}
	}
	return n, nil
}

// --- WAV (go-audio/wav) ---

type wavSource struct {
	file    io.Closer
	dec     *wav.Decoder
	pcm     *goaudio.IntBuffer
	scale   float32
	offset  int
	rate    int
	channel int
}

func newWavSource(f *os.File) (*wavSource, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrUnsupportedFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to find PCM data: %w", err)
	}

	depth := int(dec.BitDepth)
	if depth == 0 || depth > 32 {
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, depth)
	}

	s := &wavSource{
		file:    f,
		dec:     dec,
		scale:   float32(int64(1) << (depth - 1)),
		rate:    int(dec.SampleRate),
		channel: int(dec.NumChans),
		pcm: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: int(dec.NumChans),
				SampleRate:  int(dec.SampleRate),
			},
			Data: make([]int, 4096),
		},
	}
	// 8-bit WAV is unsigned.
	if depth == 8 {
		s.offset = 128
	}
	return s, nil
}

func (s *wavSource) SampleRate() int { return s.rate }
func (s *wavSource) Channels() int   { return s.channel }
func (s *wavSource) Close() error    { return s.file.Close() }

func (s *wavSource) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if cap(s.pcm.Data) < len(dst) {
		s.pcm.Data = make([]int, len(dst))
	}
	s.pcm.Data = s.pcm.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.pcm)
	for i, v := range s.pcm.Data[:n] {
		dst[i] = float32(v-s.offset) / s.scale
	}
	if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
		return 0, io.EOF
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("failed to decode WAV: %w", err)
	}
	return n, nil
}

// --- MP3 (hajimehoshi/go-mp3) ---

// mp3Source converts go-mp3's 16-bit little-endian stereo stream.
type mp3Source struct {
	file io.Closer
	dec  *gomp3.Decoder
	buf  []byte
}

func newMP3Source(f *os.File) (*mp3Source, error) {
	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return &mp3Source{file: f, dec: dec, buf: make([]byte, 8192)}, nil
}

func (s *mp3Source) SampleRate() int { return s.dec.SampleRate() }
func (s *mp3Source) Channels() int   { return 2 }
func (s *mp3Source) Close() error    { return s.file.Close() }

func (s *mp3Source) ReadSamples(dst []float32) (int, error) {
	need := len(dst) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	s.buf = s.buf[:need]

	n, err := s.dec.Read(s.buf)
	samples := n / 2
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(s.buf[2*i:]))
		dst[i] = float32(v) / 32768
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			if samples == 0 {
				return 0, io.EOF
			}
			return samples, nil
		}
		return samples, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return samples, nil
}

// --- Ogg Vorbis (jfreymuth/oggvorbis) ---

type vorbisSource struct {
	file io.Closer
	dec  *oggvorbis.Reader
}

func newVorbisSource(f *os.File) (*vorbisSource, error) {
	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}
	return &vorbisSource{file: f, dec: dec}, nil
}

func (s *vorbisSource) SampleRate() int { return s.dec.SampleRate() }
func (s *vorbisSource) Channels() int   { return s.dec.Channels() }
func (s *vorbisSource) Close() error    { return s.file.Close() }

func (s *vorbisSource) ReadSamples(dst []float32) (int, error) {
	// Keep reads frame aligned.
	ch := s.dec.Channels()
	dst = dst[:len(dst)-len(dst)%ch]
	if len(dst) == 0 {
		return 0, nil
	}

	n, err := s.dec.Read(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		}
		return n, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}
	return n, nil
}
