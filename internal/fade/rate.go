// SPDX-License-Identifier: MIT
package fade

import (
	"math"
	"time"
)

const (
	// MaxVolReduction is the attenuation treated as silence.
	MaxVolReduction = 200.0

	// StepInterval is the nominal time between two attenuation steps.
	StepInterval = 10 * time.Millisecond

	// StepsPerSecond follows from StepInterval.
	StepsPerSecond = int(time.Second / StepInterval)

	DefaultDuration = 4.0
	MinDuration     = 1.0
	MaxDuration     = 10.0
	DurationStep    = 0.1
)

// ClampDuration forces seconds into [MinDuration, MaxDuration]. NaN maps to
// DefaultDuration so the growth rate stays finite.
func ClampDuration(seconds float64) float64 {
	switch {
	case math.IsNaN(seconds):
		return DefaultDuration
	case seconds < MinDuration:
		return MinDuration
	case seconds > MaxDuration:
		return MaxDuration
	}
	return seconds
}

// StepGrowthRate returns the factor the attenuation is multiplied with on
// every step so that it reaches MaxVolReduction after seconds of stepping:
//
//	rate = MaxVolReduction ^ (1 / (StepsPerSecond * seconds))
//
// The duration is clamped first.
func StepGrowthRate(seconds float64) float64 {
	seconds = ClampDuration(seconds)
	return math.Pow(MaxVolReduction, 1/(float64(StepsPerSecond)*seconds))
}

// Steps returns how many steps a fade of the given duration takes.
func Steps(seconds float64) int {
	return int(math.Round(float64(StepsPerSecond) * ClampDuration(seconds)))
}
