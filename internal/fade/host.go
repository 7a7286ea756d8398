// SPDX-License-Identifier: MIT
package fade

// Player is the part of the media player the fade engine controls.
type Player interface {
	IsPlaying() bool
	// StopPlayback must only be called from the host's control context;
	// the controller routes it through a Dispatcher.
	StopPlayback()
}

// Dispatcher runs fn on the host's control context. Post must not block.
type Dispatcher interface {
	Post(fn func())
}

// Settings is the host's section/key configuration database.
type Settings interface {
	SetDefaults(section string, defaults map[string]string)
	GetDouble(section, key string) float64
	SetDouble(section, key string, value float64) error
}

// Menu registers user-invokable actions. The returned func removes the
// action again.
type Menu interface {
	AddAction(label string, action func()) (remove func())
}

// Host bundles the collaborators a Plugin needs. Nil members are tolerated:
// without Settings the default duration is used, without Dispatcher the stop
// request is made directly from the caller's goroutine, and without Menu no
// action is registered.
type Host struct {
	Player     Player
	Dispatcher Dispatcher
	Settings   Settings
	Menu       Menu
}
