// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	applog "fadeout/internal/log"

	"gopkg.in/yaml.v3"
)

// ErrUnknownKey is returned for lookups of keys that have neither a value
// nor a default.
var ErrUnknownKey = errors.New("config: unknown key")

// Store is a persistent section/key settings database. Values are kept as
// strings, like the host configuration databases of media players, and
// typed accessors convert on read. Defaults are layered beneath stored
// values and never written to disk.
type Store struct {
	path string

	mu       sync.RWMutex
	values   map[string]map[string]string
	defaults map[string]map[string]string
	dirty    bool
}

// OpenStore loads the store at path. A missing file yields an empty store
// that is created on the first Save. An empty path gives a memory-only
// store.
func OpenStore(path string) (*Store, error) {
	s := &Store{
		path:     path,
		values:   make(map[string]map[string]string),
		defaults: make(map[string]map[string]string),
	}
	if path == "" {
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file, empty for memory-only stores.
func (s *Store) Path() string {
	return s.path
}

// Reload replaces all stored values with the file contents.
func (s *Store) Reload() error {
	_, err := s.reload(true)
	return err
}

// ReloadIfClean is Reload unless there are unsaved changes, in which case
// the stored values are kept. The dirty check and the swap happen under one
// lock, so a concurrent Set is never overwritten. Reports whether the file
// contents were applied.
func (s *Store) ReloadIfClean() (bool, error) {
	return s.reload(false)
}

func (s *Store) reload(force bool) (bool, error) {
	if s.path == "" {
		return false, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read settings %s: %w", s.path, err)
	}

	values := make(map[string]map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return false, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}
	if values == nil {
		values = make(map[string]map[string]string)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !force && s.dirty {
		return false, nil
	}
	s.values = values
	s.dirty = false
	return true, nil
}

// SetDefaults registers fallback values for section. Existing defaults for
// the same keys are replaced.
func (s *Store) SetDefaults(section string, defaults map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := s.defaults[section]
	if sec == nil {
		sec = make(map[string]string, len(defaults))
		s.defaults[section] = sec
	}
	for k, v := range defaults {
		sec[k] = v
	}
}

// GetString returns the stored value, falling back to the default.
func (s *Store) GetString(section, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[section][key]; ok {
		return v, nil
	}
	if v, ok := s.defaults[section][key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s/%s", ErrUnknownKey, section, key)
}

// GetDouble returns the value as float64. Missing or unparseable values
// yield 0, matching what hosts hand out for absent numeric keys.
func (s *Store) GetDouble(section, key string) float64 {
	v, err := s.GetString(section, key)
	if err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		applog.Warnf("Store: Value %s/%s=%q is not a number", section, key, v)
		return 0
	}
	return f
}

// SetString stores value and marks the store dirty.
func (s *Store) SetString(section, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := s.values[section]
	if sec == nil {
		sec = make(map[string]string)
		s.values[section] = sec
	}
	if old, ok := sec[key]; ok && old == value {
		return
	}
	sec[key] = value
	s.dirty = true
}

// SetDouble stores value in its shortest decimal form.
func (s *Store) SetDouble(section, key string, value float64) error {
	s.SetString(section, key, strconv.FormatFloat(value, 'f', -1, 64))
	return nil
}

// Dirty reports whether there are unsaved changes.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Save writes the stored values to disk if they changed. The file is
// replaced atomically.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".fadeout-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace settings: %w", err)
	}

	s.dirty = false
	applog.Debugf("Store: Saved settings to %s", s.path)
	return nil
}
