// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	applog "fadeout/internal/log"
	"fadeout/pkg/bitint"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidBackend  = errors.New("config: unknown audio backend")
	ErrInvalidBuffer   = errors.New("config: frames_per_buffer must be a power of two")
	ErrInvalidDuration = errors.New("config: fade duration out of range")
)

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty it looks for "fadeout.config.yaml" in the working directory and
// falls back to built-in defaults when there is none. Environment overrides
// are applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"fadeout.config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Audio.Backend {
	case BackendPortAudio, BackendOto:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Audio.Backend)
	}

	frames := c.Audio.FramesPerBuffer
	if !bitint.IsPowerOfTwo(frames) || frames < MinBufferFrames || frames > MaxBufferFrames {
		return fmt.Errorf("%w: got %d, want %d..%d", ErrInvalidBuffer, frames, MinBufferFrames, MaxBufferFrames)
	}

	if c.Audio.SampleRate != 0 && (c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate) {
		return fmt.Errorf("config: sample_rate %.0f outside %d..%d Hz", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}

	if c.Audio.OutputDevice < MinDeviceID {
		return fmt.Errorf("config: invalid output_device %d", c.Audio.OutputDevice)
	}

	if d := c.Fade.Duration; d != 0 && (d < MinDuration || d > MaxDuration) {
		return fmt.Errorf("%w: %.2fs, want %.0f..%.0f", ErrInvalidDuration, d, MinDuration, MaxDuration)
	}

	if c.Recording.Enabled && c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
		return fmt.Errorf("config: recording bit_depth must be 16 or 24, got %d", c.Recording.BitDepth)
	}

	if c.PublishingEnabled() && c.Transport.PublishInterval <= 0 {
		return fmt.Errorf("config: transport.publish_interval must be positive")
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}

	return nil
}

// applyEnvOverrides applies FADEOUT_* environment variables on top of the
// file and default values. Unparseable values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// FADEOUT_LOG_LEVEL
	if val, ok := os.LookupEnv("FADEOUT_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("Config: Overriding log_level from env: %s", val)
	}

	// FADEOUT_STORE
	if val, ok := os.LookupEnv("FADEOUT_STORE"); ok {
		c.StorePath = val
		applog.Debugf("Config: Overriding store_path from env: %s", val)
	}

	// FADEOUT_DURATION
	if val, ok := os.LookupEnv("FADEOUT_DURATION"); ok {
		if d, err := strconv.ParseFloat(val, 64); err == nil {
			c.Fade.Duration = d
			applog.Debugf("Config: Overriding fade.duration from env: %v", d)
		} else {
			applog.Warnf("Config: Ignoring FADEOUT_DURATION=%q: %v", val, err)
		}
	}

	// FADEOUT_BACKEND
	if val, ok := os.LookupEnv("FADEOUT_BACKEND"); ok {
		c.Audio.Backend = val
		applog.Debugf("Config: Overriding audio.backend from env: %s", val)
	}

	// FADEOUT_WS_ADDR
	if val, ok := os.LookupEnv("FADEOUT_WS_ADDR"); ok {
		c.Transport.WebSocketAddr = val
		applog.Debugf("Config: Overriding transport.websocket_addr from env: %s", val)
	}

	// FADEOUT_UDP_ADDR
	if val, ok := os.LookupEnv("FADEOUT_UDP_ADDR"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Debugf("Config: Overriding transport.udp_target_address from env: %s", val)
	}

	// FADEOUT_PUBLISH_INTERVAL
	if val, ok := os.LookupEnv("FADEOUT_PUBLISH_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.PublishInterval = dur
			applog.Debugf("Config: Overriding transport.publish_interval from env: %s", dur)
		} else {
			applog.Warnf("Config: Ignoring FADEOUT_PUBLISH_INTERVAL=%q: %v", val, err)
		}
	}
}
