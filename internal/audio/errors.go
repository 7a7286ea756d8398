// SPDX-License-Identifier: MIT
package audio

import "errors"

var (
	ErrUnsupportedFormat = errors.New("audio: unsupported file format")
	ErrInvalidSource     = errors.New("audio: source reports no channels or sample rate")
	ErrRateMismatch      = errors.New("audio: source sample rate differs from the configured output rate")
	ErrAlreadyStarted    = errors.New("audio: engine already started")
	ErrAlreadyRecording  = errors.New("audio: already recording")
)
