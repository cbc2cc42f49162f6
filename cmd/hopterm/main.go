// Command hopterm flies through the attractor field in a terminal.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/hopalong/config"
	"github.com/pthm-cable/hopalong/game"
	"github.com/pthm-cable/hopalong/soundtrack"
	"github.com/pthm-cable/hopalong/systems"
	"github.com/pthm-cable/hopalong/telemetry"
	"github.com/pthm-cable/hopalong/termview"
)

// cellAspect is the height of a terminal cell relative to its width.
const cellAspect = 2

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	stride := flag.Int("stride", 8, "Project every Nth point")
	logFile := flag.String("log-file", "", "Write text logs to this file (empty = discard)")
	flag.Parse()

	logger, closeLog, err := newLogger(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *seed, *stride, logger); err != nil {
		fmt.Fprintf(os.Stderr, "hopterm: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewTextHandler(f, nil)), func() { f.Close() }, nil
}

func run(cfg *config.Config, seed int64, stride int, logger *slog.Logger) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	screen.EnableMouse(tcell.MouseMotionEvents)
	screen.HideCursor()

	w, h := screen.Size()
	cfg.Screen.Width, cfg.Screen.Height = w, h*cellAspect

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	surf := termview.New(screen, stride)

	opts := game.Options{
		Config:  cfg,
		Surface: surf,
		Seed:    seed,
		Logger:  logger,
		Perf:    perf,
	}
	if cfg.Audio.Enabled {
		player := soundtrack.NewPlayer(cfg.Audio.Volume)
		if err := player.Init(); err != nil {
			logger.Warn("soundtrack unavailable", "error", err)
		}
		defer player.Close()
		opts.Player = player
	}

	app, err := game.NewApp(opts)
	if err != nil {
		return err
	}
	surf.SetStatus(func() string { return statusLine(app, perf) })

	// done closes before screen.Fini so the poller never blocks on a send
	events := make(chan tcell.Event, 100)
	done := make(chan struct{})
	defer close(done)
	go pollEvents(screen.PollEvent, events, done)

	fps := cfg.Screen.TargetFPS
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

loop:
	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if isQuit(ev) {
					break loop
				}
				if a := actionForKey(ev); a != game.ActionNone {
					if err := app.HandleAction(a); err != nil {
						logger.Warn("action failed", "action", a, "error", err)
					}
				}
			case *tcell.EventMouse:
				x, y := ev.Position()
				app.PointerMoved(float64(x), float64(y*cellAspect))
			case *tcell.EventResize:
				w, h := ev.Size()
				app.Resize(w, h*cellAspect)
				screen.Sync()
			}
		case <-ticker.C:
			app.Step()
		}
	}

	err = app.Destroy()
	if live := surf.Live(); live != 0 {
		logger.Error("buffers still live after destroy", "live", live)
	}
	return err
}

// pollEvents forwards events until poll returns nil or done closes.
func pollEvents(poll func() tcell.Event, events chan<- tcell.Event, done <-chan struct{}) {
	for {
		ev := poll()
		if ev == nil {
			return
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
	}
}

func isQuit(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'q'
	}
	return false
}

// actionForKey mirrors the window key bindings.
func actionForKey(ev *tcell.EventKey) game.Action {
	switch ev.Key() {
	case tcell.KeyUp:
		return game.ActionSpeedUp
	case tcell.KeyDown:
		return game.ActionSpeedDown
	case tcell.KeyLeft:
		return game.ActionRotateFaster
	case tcell.KeyRight:
		return game.ActionRotateSlower
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'r':
			return game.ActionResetDefaults
		case 'l':
			return game.ActionToggleMouseLock
		case 'c':
			return game.ActionRecenter
		case ' ':
			return game.ActionTogglePlay
		}
	}
	return game.ActionNone
}

func statusLine(app *game.App, perf *telemetry.PerfCollector) string {
	s := app.Settings()
	st := app.Stats()
	p := perf.Stats()
	line := fmt.Sprintf(" %.0f fps  speed %.1f  rot %.3f  %dx%dx%d  regen %d",
		p.FPS, s.Speed, s.RotationSpeed, s.LevelCount, s.SubsetCount, s.PointsPerSubset, st.Regenerations)
	if name, pct := busiestPhase(p); name != "" {
		line += fmt.Sprintf("  %s %.0f%%", name, pct)
	}
	return line + "  q quit "
}

// busiestPhase returns the frame phase with the largest share of the step.
func busiestPhase(p telemetry.PerfStats) (string, float64) {
	var name string
	var best float64
	for _, info := range systems.PhasesOf(systems.TaskFrame) {
		if pct := p.PhasePct[info.ID]; pct > best {
			name, best = info.Name, pct
		}
	}
	return name, best
}
