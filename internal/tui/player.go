// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"fadeout/internal/analysis"
	"fadeout/internal/fade"
	"fadeout/internal/host"
	applog "fadeout/internal/log"
	"fadeout/internal/transport"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	MenuScreen ScreenType = iota
	SettingsScreen
	AboutScreen
)

const refreshInterval = 100 * time.Millisecond

// SettingsStore persists the duration preference.
type SettingsStore interface {
	GetDouble(section, key string) float64
	SetDouble(section, key string, value float64) error
	Save() error
}

// PlayerOptions wires the player UI to the running host.
type PlayerOptions struct {
	Title      string
	Info       fade.Info
	Menu       *host.Menu
	Dispatcher fade.Dispatcher // Menu actions run on the host loop
	Settings   SettingsStore
	Status     transport.StatusProvider
	Position   func() time.Duration
	Done       <-chan struct{} // Closed when playback ends
}

var keys = struct {
	quit, up, down, enter, settings, about, back key.Binding
}{
	quit:     key.NewBinding(key.WithKeys("q", "ctrl+c")),
	up:       key.NewBinding(key.WithKeys("up", "k")),
	down:     key.NewBinding(key.WithKeys("down", "j")),
	enter:    key.NewBinding(key.WithKeys("enter", " ")),
	settings: key.NewBinding(key.WithKeys("s")),
	about:    key.NewBinding(key.WithKeys("a")),
	back:     key.NewBinding(key.WithKeys("esc")),
}

type tickMsg time.Time

type playbackDoneMsg struct{}

// PlayerModel is the Bubble Tea model shown while a file plays.
type PlayerModel struct {
	opts         PlayerOptions
	activeScreen ScreenType
	viewport     viewport.Model
	ready        bool

	actions       []host.Action
	selectedIndex int
	duration      float64
	status        transport.Status
	position      time.Duration
	err           error
}

// NewPlayerModel creates the player UI.
func NewPlayerModel(opts PlayerOptions) PlayerModel {
	m := PlayerModel{
		opts:         opts,
		activeScreen: MenuScreen,
		duration:     opts.Info.Preference.Default,
	}
	if opts.Menu != nil {
		m.actions = opts.Menu.Actions()
	}
	if opts.Settings != nil {
		p := opts.Info.Preference
		if v := opts.Settings.GetDouble(p.Section, p.Key); v != 0 {
			m.duration = fade.ClampDuration(v)
		}
	}
	m.refresh()
	return m
}

// Init starts the refresh tick and waits for the end of playback.
func (m PlayerModel) Init() tea.Cmd {
	cmds := []tea.Cmd{tick()}
	if m.opts.Done != nil {
		done := m.opts.Done
		cmds = append(cmds, func() tea.Msg {
			<-done
			return playbackDoneMsg{}
		})
	}
	return tea.Batch(cmds...)
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *PlayerModel) refresh() {
	if m.opts.Status != nil {
		m.status = m.opts.Status.Status()
	}
	if m.opts.Position != nil {
		m.position = m.opts.Position()
	}
	if m.opts.Menu != nil {
		m.actions = m.opts.Menu.Actions()
		m.selectedIndex = min(m.selectedIndex, max(len(m.actions)-1, 0))
	}
}

func (m PlayerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}

	case tickMsg:
		m.refresh()
		cmd = tick()

	case playbackDoneMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, keys.quit) {
			return m, tea.Quit
		}
		m = m.handleKey(msg)
	}

	if m.ready {
		m.viewport.SetContent(m.renderScreen())
	}
	return m, cmd
}

func (m PlayerModel) handleKey(msg tea.KeyMsg) PlayerModel {
	switch m.activeScreen {
	case MenuScreen:
		switch {
		case key.Matches(msg, keys.up):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case key.Matches(msg, keys.down):
			if m.selectedIndex < len(m.actions)-1 {
				m.selectedIndex++
			}
		case key.Matches(msg, keys.enter):
			m.invokeSelected()
		case key.Matches(msg, keys.settings):
			m.activeScreen = SettingsScreen
		case key.Matches(msg, keys.about):
			m.activeScreen = AboutScreen
		}

	case SettingsScreen:
		step := m.opts.Info.Preference.Step
		switch {
		case key.Matches(msg, keys.up):
			m.setDuration(m.duration + step)
		case key.Matches(msg, keys.down):
			m.setDuration(m.duration - step)
		case key.Matches(msg, keys.back):
			m.activeScreen = MenuScreen
		}

	case AboutScreen:
		if key.Matches(msg, keys.back) || key.Matches(msg, keys.enter) {
			m.activeScreen = MenuScreen
		}
	}
	return m
}

func (m *PlayerModel) invokeSelected() {
	if m.selectedIndex >= len(m.actions) {
		return
	}
	action := m.actions[m.selectedIndex]
	if m.opts.Dispatcher != nil {
		m.opts.Dispatcher.Post(action.Invoke)
		return
	}
	action.Invoke()
}

// setDuration clamps v to the preference range, rounds it to the spinner
// step and persists it.
func (m *PlayerModel) setDuration(v float64) {
	p := m.opts.Info.Preference
	v = math.Round(v/p.Step) * p.Step
	v = math.Round(v*1000) / 1000
	v = min(max(v, p.Min), p.Max)
	if v == m.duration {
		return
	}
	m.duration = v

	if m.opts.Settings == nil {
		return
	}
	if err := m.opts.Settings.SetDouble(p.Section, p.Key, v); err != nil {
		m.err = err
		return
	}
	if err := m.opts.Settings.Save(); err != nil {
		applog.Warnf("Could not save settings: %v", err)
		m.err = err
		return
	}
	m.err = nil
}

// View renders the UI
func (m PlayerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	switch m.activeScreen {
	case MenuScreen:
		title = titleStyle.Render("Now Playing: " + m.opts.Title)
		help = infoStyle.Render("↑/↓: Navigate • Enter: Run • s: Settings • a: About • q: Quit")
	case SettingsScreen:
		title = titleStyle.Render(m.opts.Info.Name + " Settings")
		help = infoStyle.Render("↑/↓: Change Value • Esc: Back • q: Quit")
	case AboutScreen:
		title = titleStyle.Render("About " + m.opts.Info.Name)
		help = infoStyle.Render("Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m PlayerModel) renderScreen() string {
	switch m.activeScreen {
	case SettingsScreen:
		return m.renderSettings()
	case AboutScreen:
		return m.opts.Info.About
	default:
		return m.renderMenu()
	}
}

func (m PlayerModel) renderMenu() string {
	var sb strings.Builder

	state := "Playing"
	switch {
	case m.status.FadeActive:
		state = fadeStyle.Render("Fading out")
	case !m.status.Playing:
		state = dimStyle.Render("Stopped")
	}
	fmt.Fprintf(&sb, "%s  %s\n\n", formatPosition(m.position), state)
	fmt.Fprintf(&sb, "Volume  %s\n", renderBar(volumeFraction(m.status.Attenuation), 30))
	fmt.Fprintf(&sb, "Level   %s %6.1f dB (peak %6.1f dB)\n",
		renderBar(levelFraction(m.status.LevelDB), 30), m.status.LevelDB, m.status.PeakDB)
	if len(m.status.Bands) > 0 {
		fmt.Fprintf(&sb, "Spectrum %s\n", renderSpectrum(m.status.Bands))
	}
	sb.WriteString("\n")

	if len(m.actions) == 0 {
		sb.WriteString(dimStyle.Render("No menu actions registered."))
		return sb.String()
	}
	for i, action := range m.actions {
		line := fmt.Sprintf("  %s\n", action.Label)
		if i == m.selectedIndex {
			line = highlightStyle.Render(fmt.Sprintf("▶ %s\n", action.Label))
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func (m PlayerModel) renderSettings() string {
	var sb strings.Builder
	p := m.opts.Info.Preference

	fmt.Fprintf(&sb, "%s %s %.1f %s %s\n\n", p.Label,
		highlightStyle.Render("◀"), m.duration, highlightStyle.Render("▶"), p.Unit)
	fmt.Fprintf(&sb, "%s\n", renderBar((m.duration-p.Min)/(p.Max-p.Min), 30))
	fmt.Fprintf(&sb, "%s\n", dimStyle.Render(fmt.Sprintf("Range %.0f to %.0f %s, step %.1f", p.Min, p.Max, p.Unit, p.Step)))
	if m.err != nil {
		fmt.Fprintf(&sb, "\nError: %v\n", m.err)
	}
	return sb.String()
}

// volumeFraction maps the attenuation divisor onto a 0..1 dB scale where
// the silence threshold is empty.
func volumeFraction(attenuation float64) float64 {
	if attenuation <= fade.Identity {
		return 1
	}
	return 1 - math.Log(attenuation)/math.Log(fade.MaxVolReduction)
}

func levelFraction(db float64) float64 {
	return 1 - db/analysis.MinDB
}

func renderBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	if math.IsNaN(fraction) {
		fraction = 0
	}
	filled := int(math.Round(fraction * float64(width)))
	return "[" + highlightStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled)) + "]"
}

var sparkRunes = []rune(" ▁▂▃▄▅▆▇█")

func renderSpectrum(bands []float64) string {
	var sb strings.Builder
	for _, db := range bands {
		f := min(max(levelFraction(db), 0), 1)
		sb.WriteRune(sparkRunes[int(math.Round(f*float64(len(sparkRunes)-1)))])
	}
	return highlightStyle.Render(sb.String())
}

func formatPosition(d time.Duration) string {
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// RunPlayer runs the player UI until the user quits, playback ends or ctx
// is cancelled.
func RunPlayer(ctx context.Context, opts PlayerOptions) error {
	p := tea.NewProgram(
		NewPlayerModel(opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
