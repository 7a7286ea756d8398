package config

import (
	"time"

	"fadeout/internal/fade"
)

// Core configuration constants that define the boundaries and defaults
// for the fade engine and its playback host.
const (
	// Fade duration in seconds
	DefaultDuration = fade.DefaultDuration // Seconds from full volume to silence
	MinDuration     = fade.MinDuration     // Shortest selectable fade
	MaxDuration     = fade.MaxDuration     // Longest selectable fade
	DurationStep    = fade.DurationStep    // Spinner increment

	// Audio output
	DefaultBackend         = BackendPortAudio
	DefaultDeviceID        = MinDeviceID // Default to system default device
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode
	DefaultSampleRate      = 0           // 0 keeps the source's sample rate

	// Recording of the processed output
	DefaultRecord   = false
	DefaultBitDepth = 16

	// Status publishing
	DefaultWebSocketAddr   = ""                    // Disabled
	DefaultUDPTarget       = ""                    // Disabled
	DefaultPublishInterval = 33 * time.Millisecond // ~30Hz

	DefaultLogLevel  = "info"
	DefaultStoreFile = "fadeout.yaml"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MinBufferFrames = 64     // Smallest buffer the engine accepts
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
)

// Commands selected on the command line.
const (
	CommandPlay      = "play"
	CommandList      = "list"
	CommandConfigGet = "config-get"
	CommandConfigSet = "config-set"
	CommandMonitor   = "monitor"
)

// Output backends.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
)

// Config represents the runtime configuration, built from defaults, an
// optional YAML file, environment overrides and command line flags.
type Config struct {
	LogLevel  string          `yaml:"log_level"`  // Logging level (debug, info, warn, error).
	StorePath string          `yaml:"store_path"` // Settings database holding the fade duration.
	TUIMode   bool            `yaml:"tui"`        // Run the terminal UI instead of the line menu.
	Fade      FadeConfig      `yaml:"fade"`
	Audio     AudioConfig     `yaml:"audio"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`

	Command    string   `yaml:"-"` // Command to execute, see the Command* constants.
	Args       []string `yaml:"-"` // Positional arguments of Command.
	InputFile  string   `yaml:"-"` // File to play.
	PickDevice bool     `yaml:"-"` // Choose the output device interactively.
}

// FadeConfig holds fade settings. Duration 0 keeps the value already stored
// in the settings database.
type FadeConfig struct {
	Duration float64 `yaml:"duration"`
}

// AudioConfig holds settings related to audio output.
type AudioConfig struct {
	Backend         string  `yaml:"backend"`           // "portaudio" or "oto".
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Output rate in Hz, 0 for the source rate.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback buffer, power of two.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency device settings.
}

// RecordingConfig holds settings for recording the processed output.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"` // Defaults to recording-DD-MM-YYYY-HHMMSS.wav.
	BitDepth   int    `yaml:"bit_depth"`   // 16 or 24.
}

// TransportConfig holds settings for publishing fade status.
type TransportConfig struct {
	WebSocketAddr    string        `yaml:"websocket_addr"`     // Listen address for /ws, empty disables.
	UDPTargetAddress string        `yaml:"udp_target_address"` // host:port for status datagrams, empty disables.
	PublishInterval  time.Duration `yaml:"publish_interval"`   // Interval between status updates.
}

// NewConfig creates a new Config instance with default values.
// This is the base configuration before a config file, the environment or
// command line flags are applied.
func NewConfig() *Config {
	return &Config{
		LogLevel:  DefaultLogLevel,
		StorePath: DefaultStoreFile,
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
		},
		Recording: RecordingConfig{
			Enabled:  DefaultRecord,
			BitDepth: DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPTargetAddress: DefaultUDPTarget,
			PublishInterval:  DefaultPublishInterval,
		},
	}
}

// PublishingEnabled reports whether any status transport is configured.
func (c *Config) PublishingEnabled() bool {
	return c.Transport.WebSocketAddr != "" || c.Transport.UDPTargetAddress != ""
}
