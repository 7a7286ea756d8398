// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"strconv"

	"fadeout/internal/config"
	"fadeout/internal/fade"
	"fadeout/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagValues holds the raw command line values. Only flags the user set
// override the configuration file.
type flagValues struct {
	configPath string
	logLevel   string
	storePath  string
	tui        bool
	pickDevice bool

	duration float64

	backend    string
	device     int
	sampleRate float64
	frames     int
	lowLatency bool

	record   bool
	output   string
	bitDepth int

	wsAddr  string
	udpAddr string
}

// ParseArgs parses args (without the program name), loads the configuration
// file named by --config and applies the flags on top. The returned
// Config's Command selects what main runs; it is empty after --help or
// --version.
func ParseArgs(args []string, out io.Writer) (*config.Config, error) {
	info := build.Get()
	var (
		flags   flagValues
		options *config.Config
	)

	// load runs before every command so all of them see the same merged
	// configuration.
	load := func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		applyFlags(cfg, cmd.Flags(), &flags)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		options = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:               info.Name + " FILE",
		Short:             "Play an audio file with a smooth fade-out on demand",
		Version:           info.Version,
		Args:              cobra.ExactArgs(1),
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: load,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandPlay
			options.InputFile = args[0]
			options.PickDevice = flags.pickDevice
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	// List command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandList
			return nil
		},
	})

	// Settings database commands
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change stored plugin settings",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:       "get KEY",
		Short:     "Print a stored setting",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{fade.ConfigKeyDuration},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandConfigGet
			options.Args = args
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change a stored setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == fade.ConfigKeyDuration {
				d, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", args[1], err)
				}
				if d < fade.MinDuration || d > fade.MaxDuration {
					return fmt.Errorf("%w: %.2fs, want %.0f..%.0f",
						config.ErrInvalidDuration, d, fade.MinDuration, fade.MaxDuration)
				}
			}
			options.Command = config.CommandConfigSet
			options.Args = args
			return nil
		},
	})
	rootCmd.AddCommand(configCmd)

	// Status monitor
	rootCmd.AddCommand(&cobra.Command{
		Use:   "monitor ADDR",
		Short: "Print status packets received on a UDP address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = config.CommandMonitor
			options.Args = args
			return nil
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "C", "",
		"Configuration file. Default is fadeout.config.yaml when present")
	pf.StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel,
		"Log level (debug, info, warn, error)")
	pf.StringVar(&flags.storePath, "store", config.DefaultStoreFile,
		"Settings database holding the fade duration")

	// Fade Configuration
	f := rootCmd.Flags()
	f.Float64VarP(&flags.duration, "duration", "D", 0,
		fmt.Sprintf("Fade duration in seconds (%.0f-%.0f), stored in the settings database", fade.MinDuration, fade.MaxDuration))
	f.BoolVarP(&flags.tui, "tui", "t", false,
		"Run the terminal UI instead of the line menu")
	f.BoolVar(&flags.pickDevice, "pick-device", false,
		"Choose the output device interactively before playing")

	// Audio Output Configuration
	f.StringVar(&flags.backend, "backend", config.DefaultBackend,
		"Output backend (portaudio, oto)")
	f.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Specify output device ID. Use 'list' command to see available devices.")
	f.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Output sample rate in Hz, 0 follows the file")
	f.IntVarP(&flags.frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	f.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency device settings")

	// Recording Configuration
	f.BoolVarP(&flags.record, "record", "r", config.DefaultRecord,
		"Record the processed output to a WAV file")
	f.StringVarP(&flags.output, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")
	f.IntVar(&flags.bitDepth, "bit-depth", config.DefaultBitDepth,
		"Recording bit depth (16 or 24)")

	// Status Publishing
	f.StringVar(&flags.wsAddr, "ws-addr", config.DefaultWebSocketAddr,
		"Serve status over WebSocket at ADDR/ws")
	f.StringVar(&flags.udpAddr, "udp-addr", config.DefaultUDPTarget,
		"Send binary status packets to host:port")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if options == nil {
		// --help or --version
		return &config.Config{}, nil
	}
	return options, nil
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(cfg *config.Config, fs *pflag.FlagSet, v *flagValues) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("log-level", func() { cfg.LogLevel = v.logLevel })
	set("store", func() { cfg.StorePath = v.storePath })
	set("tui", func() { cfg.TUIMode = v.tui })
	set("duration", func() { cfg.Fade.Duration = v.duration })
	set("backend", func() { cfg.Audio.Backend = v.backend })
	set("device", func() { cfg.Audio.OutputDevice = v.device })
	set("sample-rate", func() { cfg.Audio.SampleRate = v.sampleRate })
	set("frames-per-buffer", func() { cfg.Audio.FramesPerBuffer = v.frames })
	set("low-latency", func() { cfg.Audio.LowLatency = v.lowLatency })
	set("record", func() { cfg.Recording.Enabled = v.record })
	set("output", func() { cfg.Recording.OutputFile = v.output })
	set("bit-depth", func() { cfg.Recording.BitDepth = v.bitDepth })
	set("ws-addr", func() { cfg.Transport.WebSocketAddr = v.wsAddr })
	set("udp-addr", func() { cfg.Transport.UDPTargetAddress = v.udpAddr })
}
