// SPDX-License-Identifier: MIT
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fadeout/internal/analysis"
	"fadeout/internal/audio"
	"fadeout/internal/config"
	"fadeout/internal/fade"
	"fadeout/internal/host"
	applog "fadeout/internal/log"
	"fadeout/internal/transport"
	"fadeout/internal/transport/udp"
	"fadeout/internal/tui"

	"golang.org/x/sync/errgroup"
)

const (
	spectrumSize  = 2048
	spectrumBands = 24
)

// player bundles everything a playback session owns.
type player struct {
	cfg      *config.Config
	store    *config.Store
	watcher  *config.Watcher
	engine   *audio.Engine
	plugin   *fade.Plugin
	loop     *host.MainLoop
	menu     *host.Menu
	status   *transport.StatusSource
	pub      *transport.Publisher
	closers  []func() error
	channels int
}

// play runs a playback session until the file ends, the fade completes or
// ctx is cancelled.
func play(ctx context.Context, cfg *config.Config) error {
	p := &player{cfg: cfg}
	defer p.close()

	if err := p.setup(); err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		err := p.loop.Run(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, host.ErrLoopClosed) {
			return nil
		}
		return err
	})
	if p.watcher != nil {
		g.Go(func() error {
			p.logReloads(ctx)
			return nil
		})
	}
	if p.pub != nil {
		p.pub.Start()
	}

	// CRITICAL: Start of real-time audio processing.
	if err := p.engine.Play(); err != nil {
		p.plugin.Cleanup()
		cancel()
		g.Wait()
		return err
	}

	if p.cfg.TUIMode {
		g.Go(func() error {
			defer cancel()
			return tui.RunPlayer(ctx, tui.PlayerOptions{
				Title:      filepath.Base(p.cfg.InputFile),
				Info:       p.plugin.Info(),
				Menu:       p.menu,
				Dispatcher: p.loop,
				Settings:   p.store,
				Status:     p.status,
				Position:   p.engine.Position,
				Done:       p.engine.Done(),
			})
		})
	} else {
		// The reader blocks on stdin and is not joined.
		go p.lineMenu(os.Stdin, os.Stdout, cancel)
	}

	select {
	case <-p.engine.Done():
		applog.Infof("Playback stopped")
	case <-ctx.Done():
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	p.shutdown(ctx)
	cancel()
	return g.Wait()
}

// setup opens every resource of the session in dependency order. Resources
// are registered with closers as they open so a failure part way through
// releases what exists.
func (p *player) setup() error {
	cfg := p.cfg

	store, err := openSettings(cfg)
	if err != nil {
		return err
	}
	p.store = store
	if cfg.Fade.Duration != 0 {
		if err := store.SetDouble(fade.ConfigSection, fade.ConfigKeyDuration, cfg.Fade.Duration); err != nil {
			return err
		}
	}
	if store.Path() != "" {
		if w, err := config.WatchStore(store); err != nil {
			applog.Warnf("Settings changes on disk will not be picked up: %v", err)
		} else {
			p.watcher = w
			p.closers = append(p.closers, w.Close)
		}
	}

	src, err := audio.OpenSource(cfg.InputFile)
	if err != nil {
		return err
	}
	rate, err := audio.ResolveSampleRate(src, cfg.Audio.SampleRate)
	if err != nil {
		src.Close()
		return err
	}
	p.channels = src.Channels()

	sink, err := p.openSink(rate)
	if err != nil {
		src.Close()
		return err
	}

	p.engine = audio.NewEngine(src, sink)
	p.closers = append(p.closers, p.engine.Close)
	p.loop = host.NewMainLoop(host.DefaultQueueSize)
	p.menu = host.NewMenu()
	p.plugin = fade.NewPlugin(fade.Host{
		Player:     p.engine,
		Dispatcher: p.loop,
		Settings:   store,
		Menu:       p.menu,
	}, nil)

	level := analysis.NewLevelMeter(cfg.Audio.FramesPerBuffer * p.channels)
	spectrum, err := analysis.NewSpectrum(spectrumSize, rate, p.channels, spectrumBands)
	if err != nil {
		return err
	}
	p.engine.AddEffect(p.plugin)
	p.engine.AddMeter(level)
	p.engine.AddMeter(spectrum)

	if err := p.plugin.Init(); err != nil {
		return err
	}
	applog.Infof("%s ready, fade duration %.1fs", p.plugin.Info().Name, p.plugin.Controller().Duration())

	p.status = &transport.StatusSource{
		State:    p.plugin.State(),
		Player:   p.engine,
		Level:    level,
		Spectrum: spectrum,
	}
	if err := p.openPublisher(); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		name := cfg.Recording.OutputFile
		if name == "" {
			name = audio.DefaultRecordingName(time.Now().UTC())
		}
		if err := p.engine.StartRecording(name, cfg.Recording.BitDepth, cfg.Audio.FramesPerBuffer); err != nil {
			return err
		}
	}
	return nil
}

func (p *player) openSink(rate float64) (audio.Sink, error) {
	cfg := p.cfg.Audio
	switch cfg.Backend {
	case config.BackendOto:
		return audio.NewOtoSink(p.channels, int(rate), cfg.FramesPerBuffer)

	default:
		if err := audio.Initialize(); err != nil {
			return nil, err
		}
		p.closers = append(p.closers, audio.Terminate)

		device := cfg.OutputDevice
		if p.cfg.PickDevice {
			picked, err := tui.PickDevice()
			if err != nil {
				return nil, err
			}
			device = picked
		}
		return audio.NewPortAudioSink(device, p.channels, rate, cfg.FramesPerBuffer, cfg.LowLatency)
	}
}

func (p *player) openPublisher() error {
	tc := p.cfg.Transport
	var transports []transport.Transport

	if tc.WebSocketAddr != "" {
		ws, err := transport.NewWebSocketTransport(tc.WebSocketAddr)
		if err != nil {
			return fmt.Errorf("failed to start WebSocket status server: %w", err)
		}
		transports = append(transports, ws)
	}
	if tc.UDPTargetAddress != "" {
		st, err := udp.NewStatusTransport(tc.UDPTargetAddress)
		if err != nil {
			for _, t := range transports {
				t.Close()
			}
			return err
		}
		transports = append(transports, st)
	}
	if applog.Enabled(applog.LevelDebug) && len(transports) > 0 {
		transports = append(transports, transport.NewLoggingTransport())
	}
	if len(transports) == 0 {
		return nil
	}

	pub, err := transport.NewPublisher(tc.PublishInterval, p.status, transports...)
	if err != nil {
		for _, t := range transports {
			t.Close()
		}
		return err
	}
	p.pub = pub
	return nil
}

// lineMenu is the plain terminal front end: "f" runs the fade menu action on
// the host loop, "q" stops playback.
func (p *player) lineMenu(in io.Reader, out io.Writer, quit context.CancelFunc) {
	fmt.Fprintf(out, "Playing %s. Enter 'f' to fade out, 'q' to quit.\n", filepath.Base(p.cfg.InputFile))

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "f", "fade":
			p.loop.Post(func() {
				if err := p.menu.Invoke(fade.MenuLabel); err != nil {
					applog.Warnf("%v", err)
				}
			})
		case "q", "quit":
			quit()
			return
		case "":
		default:
			fmt.Fprintln(out, "Unknown command. Enter 'f' to fade out, 'q' to quit.")
		}
	}
}

func (p *player) logReloads(ctx context.Context) {
	for {
		select {
		case path := <-p.watcher.Reloaded:
			applog.Infof("Reloaded settings from %s, fade duration now %.1fs",
				path, p.plugin.Controller().Duration())
		case <-ctx.Done():
			return
		}
	}
}

// shutdown releases the plugin and engine while the host loop still runs,
// so a stop request posted by a finishing fade is not lost.
func (p *player) shutdown(ctx context.Context) {
	p.plugin.Cleanup()
	if err := p.engine.Close(); err != nil {
		applog.Errorf("Error closing audio engine: %v", err)
	}
	p.plugin.Controller().Wait()

	// Run everything posted so far before quitting the loop. Once ctx is
	// done Run has returned and the queue is drained here instead.
	if ctx.Err() != nil {
		p.loop.RunPending()
	} else {
		flushed := make(chan struct{})
		p.loop.Post(func() { close(flushed) })
		select {
		case <-flushed:
		case <-time.After(time.Second):
			applog.Warnf("Host loop did not drain before shutdown")
		}
	}
	p.loop.Quit()

	if p.store.Dirty() {
		if err := p.store.Save(); err != nil {
			applog.Errorf("Error saving settings: %v", err)
		}
	}
}

// close releases resources in reverse order of opening.
func (p *player) close() {
	if p.pub != nil {
		if err := p.pub.Close(); err != nil {
			applog.Warnf("Error closing status publisher: %v", err)
		}
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			applog.Warnf("Error during shutdown: %v", err)
		}
	}
}
