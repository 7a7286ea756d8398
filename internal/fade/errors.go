// SPDX-License-Identifier: MIT
package fade

import "errors"

var (
	ErrAlreadyInitialized = errors.New("fade: plugin already initialized")
	ErrTaskLimit          = errors.New("fade: too many stepping tasks still running")
)
