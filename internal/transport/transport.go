// SPDX-License-Identifier: MIT
package transport

import (
	"fadeout/internal/analysis"
	"fadeout/internal/fade"
)

// Transport defines a generic interface for sending status snapshots.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Status is a snapshot of the fade engine and the output level.
type Status struct {
	Sequence     uint32    `json:"seq"`
	Timestamp    int64     `json:"timestamp"` // Nanoseconds since epoch
	Attenuation  float64   `json:"attenuation"`
	FadeActive   bool      `json:"fade_active"`
	StreamActive bool      `json:"stream_active"`
	Playing      bool      `json:"playing"`
	LevelDB      float64   `json:"level_db"`
	PeakDB       float64   `json:"peak_db"`
	Bands        []float64 `json:"bands,omitempty"`
}

// Status flag bits used by the binary encoding.
const (
	FlagFadeActive uint8 = 1 << iota
	FlagStreamActive
	FlagPlaying
)

// Flags packs the boolean fields.
func (s Status) Flags() uint8 {
	var f uint8
	if s.FadeActive {
		f |= FlagFadeActive
	}
	if s.StreamActive {
		f |= FlagStreamActive
	}
	if s.Playing {
		f |= FlagPlaying
	}
	return f
}

// SetFlags unpacks f into the boolean fields.
func (s *Status) SetFlags(f uint8) {
	s.FadeActive = f&FlagFadeActive != 0
	s.StreamActive = f&FlagStreamActive != 0
	s.Playing = f&FlagPlaying != 0
}

// StatusProvider produces status snapshots. Sequence and Timestamp are
// filled in by the publisher.
type StatusProvider interface {
	Status() Status
}

// StatusSource reads the live fade state and meters. Nil members are
// reported as idle or silent.
type StatusSource struct {
	State    *fade.State
	Player   fade.Player
	Level    *analysis.LevelMeter
	Spectrum *analysis.Spectrum
}

// Status implements StatusProvider.
func (s *StatusSource) Status() Status {
	st := Status{
		Attenuation: fade.Identity,
		LevelDB:     analysis.MinDB,
		PeakDB:      analysis.MinDB,
	}
	if s.State != nil {
		st.Attenuation = s.State.Attenuation()
		st.FadeActive = s.State.Active()
		st.StreamActive = s.State.StreamActive()
	}
	if s.Player != nil {
		st.Playing = s.Player.IsPlaying()
	}
	if s.Level != nil {
		st.LevelDB = s.Level.LevelDB()
		st.PeakDB = s.Level.PeakDB()
	}
	if s.Spectrum != nil {
		st.Bands = s.Spectrum.Bands(nil)
	}
	return st
}

var _ StatusProvider = (*StatusSource)(nil)
