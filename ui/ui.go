package ui

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/hopalong/game"
	"github.com/pthm-cable/hopalong/loop"
	"github.com/pthm-cable/hopalong/settings"
	"github.com/pthm-cable/hopalong/telemetry"
)

// UI owns the chrome. Draw runs inside the surface's frame and only records
// what the user did; Update applies it between scheduler steps.
type UI struct {
	app      *game.App
	perf     *telemetry.PerfCollector
	overlays *OverlayRegistry
	bindings []KeyBinding
	logger   *slog.Logger

	toolbar *Toolbar
	panel   *SettingsPanel
	stats   *StatsPanel
	help    *HelpPanel
	idle    *IdleTimer

	current     settings.Settings
	changes     []settings.Partial
	pressed     ToolbarAction
	unsubscribe func()
}

// New creates the UI for app. perf may be nil.
func New(app *game.App, perf *telemetry.PerfCollector, logger *slog.Logger) *UI {
	if logger == nil {
		logger = slog.Default()
	}
	u := &UI{
		app:      app,
		perf:     perf,
		overlays: NewOverlayRegistry(),
		bindings: DefaultBindings(),
		logger:   logger,
		toolbar:  NewToolbar(10, 10),
		panel:    NewSettingsPanel(10, 46, 300),
		stats:    NewStatsPanel(0, 10, 280),
		help:     NewHelpPanel(),
		idle:     NewIdleTimer(loop.SystemClock{}, toolbarIdle),
		current:  app.Settings(),
	}
	u.panel.Sync(u.current)
	u.unsubscribe = app.OnSettingsChanged(func(s settings.Settings) {
		u.current = s
		u.panel.Sync(s)
	})
	return u
}

// Update handles input and applies what the previous Draw recorded.
func (u *UI) Update() {
	u.handleKeys()
	u.handlePointer()

	for _, p := range u.changes {
		if err := u.app.ApplySettings(p); err != nil {
			u.logger.Warn("settings change rejected", "error", err)
		}
	}
	u.changes = u.changes[:0]

	switch u.pressed {
	case ToolbarMenu:
		u.overlays.Toggle(OverlayMenu)
	case ToolbarStats:
		u.overlays.Toggle(OverlayStats)
	case ToolbarFullscreen:
		rl.ToggleFullscreen()
	case ToolbarMouseLock:
		u.act(game.ActionToggleMouseLock)
	case ToolbarPlay:
		u.act(game.ActionTogglePlay)
	case ToolbarCenter:
		u.act(game.ActionRecenter)
	}
	u.pressed = ToolbarNone
}

func (u *UI) act(a game.Action) {
	if err := u.app.HandleAction(a); err != nil {
		u.logger.Warn("action failed", "action", a, "error", err)
	}
}

// Draw renders the visible chrome. Register it with the surface overlay hook.
func (u *UI) Draw() {
	if toolbarShown(u.overlays, u.idle) {
		if a := u.toolbar.Draw(u.current, u.overlays.Visible(OverlayMenu), u.overlays.Visible(OverlayStats)); a != ToolbarNone {
			u.pressed = a
		}
	}
	if u.overlays.Visible(OverlayMenu) {
		pending := u.app.Stats().PendingRebuild
		u.changes = append(u.changes, u.panel.Draw(u.current, pending)...)
	}
	if u.overlays.Visible(OverlayStats) {
		u.stats.SetPosition(int32(rl.GetScreenWidth())-u.stats.width-10, 10)
		data := StatsPanelData{
			FPS:      rl.GetFPS(),
			App:      u.app.Stats(),
			Settings: u.current,
		}
		if u.perf != nil {
			data.Perf = u.perf.Stats()
		}
		u.stats.Draw(data)
	}
	if u.overlays.Visible(OverlayHelp) {
		u.help.Draw(u.bindings, u.overlays.All(), int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight()))
	}
}

// Close stops listening for settings changes.
func (u *UI) Close() {
	if u.unsubscribe != nil {
		u.unsubscribe()
	}
}
