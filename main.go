// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fadeout/cmd"
	"fadeout/internal/audio"
	"fadeout/internal/config"
	applog "fadeout/internal/log"
	"fadeout/pkg/build"
)

// main is the entry point for the fadeout player.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//   - Open the settings database, the source file and the output
//   - Register the fade plugin with the host
//
// 2. Concurrent Phase (Hot Path):
//   - Run the host main loop and the status publisher
//   - Start playback through the effect chain
//   - Serve the terminal UI or the line menu
//
// 3. Shutdown Phase (Cold Path):
//   - Wait for the end of playback or a termination signal
//   - Clean up the plugin, engine, recorder and settings
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Release builds inject build information; development builds use the
	// module information instead.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build info not injected (%v), using %s", err, build.Get())
	}

	cfg, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nRun '%s --help' for usage.\n", err, build.Get().Name)
		os.Exit(2)
	}
	applog.SetLevelString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		applog.Fatalf("%v", err)
	}
}

// execute runs the command selected on the command line.
func execute(ctx context.Context, cfg *config.Config) error {
	switch cfg.Command {
	case "":
		// --help or --version
		return nil
	case config.CommandList:
		return listDevices()
	case config.CommandConfigGet:
		return configGet(cfg, os.Stdout)
	case config.CommandConfigSet:
		return configSet(cfg)
	case config.CommandMonitor:
		return monitor(ctx, cfg.Args[0], os.Stdout)
	case config.CommandPlay:
		return play(ctx, cfg)
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

// listDevices handles the one-off device listing.
func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices(os.Stdout)
}
