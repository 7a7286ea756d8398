// SPDX-License-Identifier: MIT
package host

import (
	"fmt"
	"sync"
)

// Action is a labeled entry of the host menu.
type Action struct {
	id     uint64
	Label  string
	Invoke func()
}

// Menu is the host's list of user-invokable actions, in registration order.
type Menu struct {
	mu      sync.Mutex
	nextID  uint64
	actions []Action
}

// NewMenu returns an empty menu.
func NewMenu() *Menu {
	return &Menu{}
}

// AddAction appends an action and returns a function that removes exactly
// this registration again.
func (m *Menu) AddAction(label string, action func()) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.actions = append(m.actions, Action{id: id, Label: label, Invoke: action})

	var once sync.Once
	return func() {
		once.Do(func() { m.remove(id) })
	}
}

func (m *Menu) remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, a := range m.actions {
		if a.id == id {
			m.actions = append(m.actions[:i], m.actions[i+1:]...)
			return
		}
	}
}

// Actions returns a snapshot of the registered actions.
func (m *Menu) Actions() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Action(nil), m.actions...)
}

// Invoke runs the first action with the given label.
func (m *Menu) Invoke(label string) error {
	for _, a := range m.Actions() {
		if a.Label == label {
			a.Invoke()
			return nil
		}
	}
	return fmt.Errorf("host: no menu action %q", label)
}
