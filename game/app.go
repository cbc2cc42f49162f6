package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pthm-cable/hopalong/camera"
	"github.com/pthm-cable/hopalong/config"
	"github.com/pthm-cable/hopalong/loop"
	"github.com/pthm-cable/hopalong/orbit"
	"github.com/pthm-cable/hopalong/settings"
	"github.com/pthm-cable/hopalong/surface"
	"github.com/pthm-cable/hopalong/telemetry"
)

// orbitSampleStride is the point stride used for per-orbit statistics.
const orbitSampleStride = 64

// Player is the soundtrack control driven by the play/pause setting.
type Player interface {
	SetPlaying(playing bool)
}

// Options configures an App.
type Options struct {
	Config  *config.Config
	Surface surface.Surface
	Clock   loop.Clock // nil = wall clock
	Seed    int64      // 0 = seeded from the clock
	Logger  *slog.Logger

	Perf     *telemetry.PerfCollector // optional
	Output   *telemetry.OutputManager // optional, not closed by the App
	LogStats bool                     // log per-orbit statistics
	Player   Player                   // optional
}

// App owns the camera, the scheduler, the settings reconciler and the one
// running Instance. Everything runs on the goroutine that calls Step.
type App struct {
	cfg    *config.Config
	surf   surface.Surface
	logger *slog.Logger
	rng    *rand.Rand

	sched      *loop.Scheduler
	cam        *camera.Controller
	reconciler *settings.Reconciler

	perf     *telemetry.PerfCollector
	output   *telemetry.OutputManager
	sampler  *telemetry.OrbitSampler
	logStats bool
	player   Player

	inst   *Instance
	nextID int
	steps  uint64

	// Totals carried over from destroyed instances
	leaked        int
	degenerate    int
	regenerations int
	frames        uint64

	destroyed bool
}

// Stats is a snapshot of App counters.
type Stats struct {
	Instance         int
	Rebuilds         int
	FailedRebuilds   int
	LeakedBuffers    int
	DegenerateOrbits int
	Regenerations    int
	Frames           uint64
	Sets             int
	PendingRebuild   bool
	Publishes        int
}

// NewApp builds the camera and the first Instance and starts it.
func NewApp(opts Options) (*App, error) {
	if opts.Surface == nil {
		return nil, fmt.Errorf("new app: %w", ErrMissingSurface)
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("new app: %w", ErrMissingConfig)
	}

	cfg := opts.Config
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		cfg:      cfg,
		surf:     opts.Surface,
		logger:   logger,
		rng:      rand.New(rand.NewSource(seed)),
		sched:    loop.NewScheduler(opts.Clock),
		perf:     opts.Perf,
		output:   opts.Output,
		sampler:  telemetry.NewOrbitSampler(orbitSampleStride),
		logStats: opts.LogStats,
		player:   opts.Player,
	}
	a.cam = camera.New(camera.Options{
		Bound:  cfg.Camera.Bound,
		Easing: cfg.Camera.Easing,
		Z:      cfg.Derived.CameraZ,
		FOV:    cfg.Camera.FOV,
		Near:   cfg.Camera.Near,
		Far:    cfg.Derived.Far,
		Width:  cfg.Screen.Width,
		Height: cfg.Screen.Height,
	})

	initial := settings.FromConfig(cfg)
	inst, err := a.build(initial)
	if err != nil {
		return nil, fmt.Errorf("new app: %w", err)
	}
	a.inst = inst

	a.reconciler = settings.NewReconciler(settings.ReconcilerOptions{
		Runtime:   a,
		Scheduler: a.sched,
		Debounce:  cfg.Timing.Debounce,
		Initial:   initial,
		Logger:    logger,
	})

	if a.player != nil {
		a.player.SetPlaying(initial.Playing)
	}
	if a.perf != nil && cfg.Telemetry.LogInterval > 0 {
		a.sched.Every("telemetry.perf", cfg.Telemetry.LogInterval, a.flushPerf)
	}

	logger.Info("app started", "seed", seed)
	return a, nil
}

// build constructs and starts a new Instance.
func (a *App) build(s settings.Settings) (*Instance, error) {
	a.nextID++
	opts := InstanceOptions{
		ID:           a.nextID,
		Config:       a.cfg,
		Settings:     s,
		Surface:      a.surf,
		Camera:       a.cam,
		Scheduler:    a.sched,
		Rand:         a.rng,
		Logger:       a.logger,
		OnRegenerate: a.onRegenerate,
	}
	if a.perf != nil {
		opts.Stats = a.perf
	}

	inst, err := NewInstance(opts)
	if err != nil {
		return nil, err
	}
	if err := inst.Start(); err != nil {
		inst.Destroy()
		return nil, err
	}
	return inst, nil
}

// ApplyLive implements settings.Runtime.
func (a *App) ApplyLive(p settings.Partial) {
	if a.inst != nil {
		if p.Speed != nil {
			a.inst.SetSpeed(*p.Speed)
		}
		if p.RotationSpeed != nil {
			a.inst.SetRotationSpeed(*p.RotationSpeed)
		}
	}
	if p.CameraFOV != nil {
		a.cam.SetFOV(*p.CameraFOV)
	}
	if p.MouseLocked != nil {
		a.cam.SetMouseLock(*p.MouseLocked)
	}
	if p.Playing != nil && a.player != nil {
		a.player.SetPlaying(*p.Playing)
	}
}

// Rebuild implements settings.Runtime. The running instance is destroyed
// before its replacement registers any task. If the replacement cannot be
// built, an instance with the previous structure is restored.
func (a *App) Rebuild(s settings.Settings) error {
	a.retire()

	inst, err := a.build(s)
	if err == nil {
		a.inst = inst
		return nil
	}

	fallback := s
	active := a.reconciler.Active()
	fallback.PointsPerSubset = active.PointsPerSubset
	fallback.SubsetCount = active.SubsetCount
	fallback.LevelCount = active.LevelCount

	inst, ferr := a.build(fallback)
	if ferr != nil {
		a.logger.Error("could not restore previous instance", "error", ferr)
		return errors.Join(err, ferr)
	}
	a.inst = inst
	return err
}

// retire destroys the running instance and folds its counters into the totals.
func (a *App) retire() {
	if a.inst == nil {
		return
	}
	old := a.inst
	a.inst = nil

	a.degenerate += old.DegenerateOrbits()
	a.regenerations += old.Regenerations()
	a.frames += old.Frames()

	failed, err := old.Destroy()
	if failed > 0 || err != nil {
		a.leaked += failed
		a.logger.Warn("buffers leaked releasing instance",
			"instance", old.ID(),
			"failed", failed,
			"leaked_total", a.leaked,
			"error", err,
		)
	}
}

func (a *App) onRegenerate(o *orbit.Orbit, elapsed time.Duration, err error) {
	if err != nil || (a.output == nil && !a.logStats) {
		return
	}
	stats := a.sampler.Sample(o, elapsed)
	if a.logStats {
		a.logger.Info("orbit", "stats", stats)
	}
	if werr := a.output.WriteOrbit(stats); werr != nil {
		a.logger.Warn("writing orbit stats", "error", werr)
	}
}

func (a *App) flushPerf() {
	stats := a.perf.Stats()
	a.logger.Info("perf", "stats", stats)
	if err := a.output.WritePerf(stats, a.steps); err != nil {
		a.logger.Warn("writing perf stats", "error", err)
	}
}

// Step runs every due task once. It returns the number of tasks run.
func (a *App) Step() int {
	if a.destroyed {
		return 0
	}
	if a.perf != nil {
		a.perf.StartTick()
	}
	n := a.sched.Step()
	if a.perf != nil {
		a.perf.EndTick()
		a.perf.RecordFrame()
	}
	a.steps++
	return n
}

// ApplySettings applies a settings change. Live fields take effect at once;
// structural fields rebuild the instance after the debounce window.
func (a *App) ApplySettings(p settings.Partial) error {
	if a.destroyed {
		return ErrDestroyed
	}
	return a.reconciler.Apply(p)
}

// Settings returns the canonical settings, including pending structural values.
func (a *App) Settings() settings.Settings {
	return a.reconciler.Settings()
}

// RecenterCamera makes the current pointer position the new zero and locks the mouse.
func (a *App) RecenterCamera() error {
	a.cam.Recenter()
	return a.ApplySettings(settings.Partial{MouseLocked: settings.Bool(true)})
}

// ResetDefaults restores the configured speed, rotation speed and field of view.
func (a *App) ResetDefaults() error {
	d := settings.FromConfig(a.cfg)
	return a.ApplySettings(settings.Partial{
		Speed:         settings.Float(d.Speed),
		RotationSpeed: settings.Float(d.RotationSpeed),
		CameraFOV:     settings.Float(d.CameraFOV),
	})
}

// ChangeSpeed adds delta to the speed. The result is floored at 0.
func (a *App) ChangeSpeed(delta float64) error {
	return a.ApplySettings(settings.Partial{Speed: settings.Float(a.Settings().Speed + delta)})
}

// ChangeRotationSpeed adds delta to the rotation speed.
func (a *App) ChangeRotationSpeed(delta float64) error {
	return a.ApplySettings(settings.Partial{RotationSpeed: settings.Float(a.Settings().RotationSpeed + delta)})
}

// SetMouseLock sets the mouse lock, or toggles it when locked is nil.
func (a *App) SetMouseLock(locked *bool) error {
	v := !a.Settings().MouseLocked
	if locked != nil {
		v = *locked
	}
	return a.ApplySettings(settings.Partial{MouseLocked: settings.Bool(v)})
}

// TogglePlaying flips the soundtrack play state.
func (a *App) TogglePlaying() error {
	return a.ApplySettings(settings.Partial{Playing: settings.Bool(!a.Settings().Playing)})
}

// OnSettingsChanged registers fn for every published settings value and
// returns a function that removes it.
func (a *App) OnSettingsChanged(fn func(settings.Settings)) func() {
	return a.reconciler.Subscribe(fn)
}

// FlushSettings runs a pending structural rebuild now.
func (a *App) FlushSettings() {
	a.reconciler.Flush()
}

// PointerMoved forwards a pointer position in window pixels to the camera.
func (a *App) PointerMoved(x, y float64) {
	a.cam.PointerMoved(x, y)
}

// Resize updates the viewport size.
func (a *App) Resize(width, height int) {
	a.cam.Resize(width, height)
}

// Destroy cancels any pending rebuild and tears down the running instance.
func (a *App) Destroy() error {
	if a.destroyed {
		return ErrDestroyed
	}
	a.reconciler.Close()
	leakedBefore := a.leaked
	a.retire()
	a.sched.StopAll()
	a.destroyed = true

	if a.perf != nil {
		a.flushPerf()
	}
	a.logger.Info("app destroyed",
		"rebuilds", a.reconciler.Rebuilds(),
		"leaked_buffers", a.leaked,
		"frames", a.frames,
	)
	if n := a.leaked - leakedBefore; n > 0 {
		return fmt.Errorf("destroy: %d buffers not released", n)
	}
	return nil
}

// Instance returns the running instance, nil after Destroy.
func (a *App) Instance() *Instance { return a.inst }

// Camera returns the camera controller.
func (a *App) Camera() *camera.Controller { return a.cam }

// Scheduler returns the scheduler driving the App.
func (a *App) Scheduler() *loop.Scheduler { return a.sched }

// Config returns the configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Stats returns a snapshot of App counters.
func (a *App) Stats() Stats {
	s := Stats{
		Rebuilds:         a.reconciler.Rebuilds(),
		FailedRebuilds:   a.reconciler.Failures(),
		LeakedBuffers:    a.leaked,
		DegenerateOrbits: a.degenerate,
		Regenerations:    a.regenerations,
		Frames:           a.frames,
		PendingRebuild:   a.reconciler.Pending(),
		Publishes:        a.reconciler.Publishes(),
	}
	if a.inst != nil {
		s.Instance = a.inst.ID()
		s.DegenerateOrbits += a.inst.DegenerateOrbits()
		s.Regenerations += a.inst.Regenerations()
		s.Frames += a.inst.Frames()
		s.Sets = a.inst.Levels().Len()
	}
	return s
}
