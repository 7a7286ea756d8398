// SPDX-License-Identifier: MIT
package fade

import (
	"math"
	"sync/atomic"
)

// Identity is the attenuation of an inactive fade. Samples pass unchanged.
const Identity = 1.0

var identityBits = math.Float64bits(Identity)

// State is the fade progress shared between the stepping task and the audio
// callback. The attenuation doubles as the activity flag: a fade is running
// exactly when it differs from Identity.
type State struct {
	attenuation  atomic.Uint64 // math.Float64bits of the divisor
	streamActive atomic.Bool
}

// NewState returns an inactive state with no stream attached.
func NewState() *State {
	s := &State{}
	s.attenuation.Store(identityBits)
	return s
}

// Attenuation returns the current sample divisor.
func (s *State) Attenuation() float64 {
	return math.Float64frombits(s.attenuation.Load())
}

// Active reports whether a fade is in progress.
func (s *State) Active() bool {
	return s.attenuation.Load() != identityBits
}

// StreamActive reports whether the host is currently delivering buffers.
func (s *State) StreamActive() bool {
	return s.streamActive.Load()
}

func (s *State) setAttenuation(v float64) {
	s.attenuation.Store(math.Float64bits(v))
}

func (s *State) reset() {
	s.attenuation.Store(identityBits)
}

func (s *State) setStreamActive(active bool) {
	s.streamActive.Store(active)
}
