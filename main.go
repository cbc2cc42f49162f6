package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/hopalong/config"
	"github.com/pthm-cable/hopalong/game"
	"github.com/pthm-cable/hopalong/remote"
	"github.com/pthm-cable/hopalong/renderer"
	"github.com/pthm-cable/hopalong/soundtrack"
	"github.com/pthm-cable/hopalong/surface"
	"github.com/pthm-cable/hopalong/telemetry"
	"github.com/pthm-cable/hopalong/ui"
)

type runOptions struct {
	cfg       *config.Config
	seed      int64
	maxFrames int
	logStats  bool
	logger    *slog.Logger
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager
	remote    *remote.Server
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxFrames := flag.Int("max-frames", 0, "Stop after N frames (0 = unlimited)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	remoteAddr := flag.String("remote", "", "Websocket control address, e.g. :8080 (overrides config)")
	logFormat := flag.String("log-format", "json", "Log format: json or text")
	logStats := flag.Bool("log-stats", false, "Output orbit stats via slog")

	flag.Parse()

	logger := newLogger(*logFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *remoteAddr != "" {
		cfg.Remote.Addr = *remoteAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		cfg:       cfg,
		seed:      *seed,
		maxFrames: *maxFrames,
		logStats:  *logStats,
		logger:    logger,
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
	}

	if *outputDir != "" {
		output, err := telemetry.NewOutputManager(*outputDir)
		if err != nil {
			logger.Error("failed to create output directory", "error", err)
			os.Exit(1)
		}
		defer output.Close()
		if err := output.WriteConfig(cfg); err != nil {
			logger.Warn("failed to write config snapshot", "error", err)
		}
		opts.output = output
	}

	if cfg.Remote.Addr != "" {
		opts.remote = remote.NewServer(logger)
		go func() {
			if err := opts.remote.ListenAndServe(ctx, cfg.Remote.Addr); err != nil {
				logger.Error("remote control stopped", "error", err)
			}
		}()
	}

	if *headless {
		err = runHeadless(ctx, opts)
	} else {
		err = runWindow(ctx, opts)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(format string) *slog.Logger {
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// newApp builds the App on surf and wires the remote server to it.
func newApp(opts runOptions, surf surface.Surface, player game.Player) (*game.App, func(), error) {
	app, err := game.NewApp(game.Options{
		Config:   opts.cfg,
		Surface:  surf,
		Seed:     opts.seed,
		Logger:   opts.logger,
		Perf:     opts.perf,
		Output:   opts.output,
		LogStats: opts.logStats,
		Player:   player,
	})
	if err != nil {
		return nil, nil, err
	}
	unsubscribe := func() {}
	if opts.remote != nil {
		unsubscribe = app.OnSettingsChanged(opts.remote.Broadcast)
	}
	return app, unsubscribe, nil
}

// runHeadless steps the App as fast as possible without a window.
func runHeadless(ctx context.Context, opts runOptions) error {
	surf := surface.NewHeadless()
	app, unsubscribe, err := newApp(opts, surf, nil)
	if err != nil {
		return err
	}
	defer unsubscribe()

	opts.logger.Info("starting headless run",
		"seed", opts.seed,
		"max_frames", opts.maxFrames,
		"sets", app.Stats().Sets,
	)

	for frames := 0; ctx.Err() == nil; frames++ {
		if opts.maxFrames > 0 && frames >= opts.maxFrames {
			opts.logger.Info("max frames reached", "frames", frames)
			break
		}
		if opts.remote != nil {
			opts.remote.Drain(app)
		}
		app.Step()
	}

	err = app.Destroy()
	if live := surf.Live(); live != 0 {
		err = errors.Join(err, fmt.Errorf("%d buffers still live after destroy", live))
	}
	return err
}

// runWindow drives the App from the raylib frame loop.
func runWindow(ctx context.Context, opts runOptions) error {
	cfg := opts.cfg

	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	surf := renderer.NewSurface(cfg.Render)
	defer surf.Close()
	surf.LoadSprite(cfg.Render.Sprite)

	var player *soundtrack.Player
	if cfg.Audio.Enabled {
		player = soundtrack.NewPlayer(cfg.Audio.Volume)
		if err := player.Init(); err != nil {
			opts.logger.Warn("soundtrack unavailable", "error", err)
		}
		defer player.Close()
	}

	var app *game.App
	var unsubscribe func()
	var err error
	if player != nil {
		app, unsubscribe, err = newApp(opts, surf, player)
	} else {
		app, unsubscribe, err = newApp(opts, surf, nil)
	}
	if err != nil {
		return err
	}
	defer unsubscribe()

	chrome := ui.New(app, opts.perf, opts.logger)
	defer chrome.Close()
	surf.SetOverlay(chrome.Draw)

	fellBack := cfg.Render.Sprite == ""
	for frames := 0; !rl.WindowShouldClose() && ctx.Err() == nil; frames++ {
		if opts.maxFrames > 0 && frames >= opts.maxFrames {
			break
		}

		select {
		case err := <-surf.Errors():
			opts.logger.Warn("render resource failed", "error", err)
			if !fellBack {
				fellBack = true
				surf.LoadSprite("")
			}
		default:
		}

		if opts.remote != nil {
			opts.remote.Drain(app)
		}
		chrome.Update()
		app.Step()
	}

	err = app.Destroy()
	if live := surf.Live(); live != 0 {
		err = errors.Join(err, fmt.Errorf("%d buffers still live after destroy", live))
	}
	return err
}
