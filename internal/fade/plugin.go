// SPDX-License-Identifier: MIT
package fade

import (
	"strconv"
	"sync"

	applog "fadeout/internal/log"
)

// MenuLabel is the label of the menu action that triggers a fade.
const MenuLabel = "Fade out"

// Info describes the plugin to the host.
type Info struct {
	Name  string
	About string
	// Preference spinner for the duration setting.
	Preference Preference
}

// Preference describes a numeric setting the host can render as a spinner.
type Preference struct {
	Section string
	Key     string
	Label   string
	Unit    string
	Min     float64
	Max     float64
	Step    float64
	Default float64
}

var pluginInfo = Info{
	Name: "FadeOut",
	About: "FadeOut Plugin\n\n" +
		"Provides a menu entry for smoothly fading out any " +
		"playing song before eventually stopping playback.",
	Preference: Preference{
		Section: ConfigSection,
		Key:     ConfigKeyDuration,
		Label:   "Duration:",
		Unit:    "seconds",
		Min:     MinDuration,
		Max:     MaxDuration,
		Step:    DurationStep,
		Default: DefaultDuration,
	},
}

// Plugin exposes the fade engine through the effect hooks a host drives
// from its audio path (Start, Process, Finish, Flush) plus the lifecycle
// hooks Init and Cleanup.
type Plugin struct {
	ctrl *Controller
	host Host

	mu         sync.Mutex
	removeMenu func()
	started    bool
}

// NewPlugin creates a plugin with fresh state. clock may be nil.
func NewPlugin(host Host, clock Clock) *Plugin {
	return &Plugin{
		ctrl: NewController(NewState(), host, clock),
		host: host,
	}
}

// Info returns the static plugin description.
func (p *Plugin) Info() Info {
	return pluginInfo
}

// Controller returns the controller behind the plugin.
func (p *Plugin) Controller() *Controller {
	return p.ctrl
}

// State returns the shared fade state.
func (p *Plugin) State() *State {
	return p.ctrl.state
}

// Init installs the configuration defaults and registers the fade menu
// action.
func (p *Plugin) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyInitialized
	}

	if p.host.Settings != nil {
		p.host.Settings.SetDefaults(ConfigSection, map[string]string{
			ConfigKeyDuration: strconv.FormatFloat(DefaultDuration, 'g', -1, 64),
		})
	}
	if p.host.Menu != nil {
		p.removeMenu = p.host.Menu.AddAction(MenuLabel, p.RequestFadeOut)
	}
	p.started = true

	applog.Debugf("FadePlugin: Initialized (duration %.1fs)", p.ctrl.Duration())
	return nil
}

// Cleanup switches off any running fade and removes the menu action. It does
// not wait for the stepping task to exit.
func (p *Plugin) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ctrl.ForceStop()
	if p.removeMenu != nil {
		p.removeMenu()
		p.removeMenu = nil
	}
	p.started = false
}

// RequestFadeOut is the menu action. See Controller.RequestFadeOut.
func (p *Plugin) RequestFadeOut() {
	p.ctrl.RequestFadeOut()
}

// Start marks the stream as active. Channel count and sample rate are not
// needed: fade timing is wall-clock based.
func (p *Plugin) Start(channels, rate int) {
	p.ctrl.state.setStreamActive(true)
}

// Process attenuates buf in place with the current fade progress.
func (p *Plugin) Process(buf []float32) []float32 {
	Attenuate(buf, p.ctrl.state.Attenuation())
	return buf
}

// Finish attenuates the final buffer of a stream. A fade still in progress
// cannot continue without further buffers, so playback is stopped right away.
// Only that case takes the controller mutex.
func (p *Plugin) Finish(buf []float32, endOfPlaylist bool) []float32 {
	p.Process(buf)
	if p.ctrl.state.Active() && p.ctrl.StopWithPlayback() {
		applog.Infof("FadePlugin: Stream ended while fading, stopping playback")
	}
	p.ctrl.state.setStreamActive(false)
	return buf
}

// Flush is a no-op: the fade does not depend on buffered history.
func (p *Plugin) Flush() {}
