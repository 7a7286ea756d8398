// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"fadeout/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// DevicePickerModel lets the user choose an output device before playback.
type DevicePickerModel struct {
	devices       []audio.Device
	selectedIndex int
	chosen        int
	viewport      viewport.Model
	ready         bool
	err           error

	fetch func() ([]audio.Device, error)
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDevicePickerModel creates a picker listing the output devices returned
// by fetch.
func NewDevicePickerModel(fetch func() ([]audio.Device, error)) DevicePickerModel {
	return DevicePickerModel{
		chosen: audio.DefaultDeviceID,
		fetch:  fetch,
	}
}

// Init fetches the devices.
func (m DevicePickerModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		outputs := devices[:0:0]
		for _, d := range devices {
			if d.IsOutput() {
				outputs = append(outputs, d)
			}
		}
		return devicesMsg{outputs}
	}
}

// Chosen returns the selected device ID, or audio.DefaultDeviceID when the
// picker was left without a choice.
func (m DevicePickerModel) Chosen() int {
	return m.chosen
}

func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case devicesMsg:
		m.devices = msg.devices

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.quit), key.Matches(msg, keys.back):
			return m, tea.Quit
		case key.Matches(msg, keys.up):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case key.Matches(msg, keys.down):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
			}
		case key.Matches(msg, keys.enter):
			if len(m.devices) > 0 {
				m.chosen = m.devices[m.selectedIndex].ID
				return m, tea.Quit
			}
		}
	}

	if m.ready {
		m.viewport.SetContent(m.renderDevices())
	}
	return m, nil
}

// View renders the UI
func (m DevicePickerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	title := titleStyle.Render("Output Devices")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • Esc: System default • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No output devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		info := fmt.Sprintf("[%d] %s\n    Output channels: %d, Default sample rate: %.0f Hz\n",
			device.ID, device.Name, device.MaxOutputChannels, device.DefaultSampleRate)
		if i == m.selectedIndex {
			info = highlightStyle.Render(info)
		}
		sb.WriteString(info)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice runs the picker and returns the chosen device ID.
func PickDevice() (int, error) {
	p := tea.NewProgram(
		NewDevicePickerModel(audio.GetDevices),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return audio.DefaultDeviceID, err
	}
	return final.(DevicePickerModel).Chosen(), nil
}
