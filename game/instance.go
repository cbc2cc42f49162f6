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
	"github.com/pthm-cable/hopalong/systems"
	"github.com/pthm-cable/hopalong/telemetry"
)

// Construction errors.
var (
	ErrMissingSurface   = errors.New("missing drawable surface")
	ErrMissingConfig    = errors.New("missing config")
	ErrMissingScheduler = errors.New("missing scheduler")
	ErrMissingCamera    = errors.New("missing camera")
	ErrDestroyed        = errors.New("already destroyed")
)

// initialAttempts bounds retries when the first orbit of an instance is degenerate.
const initialAttempts = 8

// State is the lifecycle state of an Instance.
type State uint8

const (
	StateConstructing State = iota
	StateRunning
	StateDestroying
	StateDestroyed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateConstructing:
		return "constructing"
	case StateRunning:
		return "running"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// StatsSink receives phase timings from the frame and regeneration tasks.
type StatsSink interface {
	StartPhase(phase string)
	EndPhase()
}

type nopSink struct{}

func (nopSink) StartPhase(string) {}
func (nopSink) EndPhase()         {}

// RegenerateFunc observes every regeneration attempt.
type RegenerateFunc func(o *orbit.Orbit, elapsed time.Duration, err error)

// InstanceOptions configures a new Instance.
type InstanceOptions struct {
	ID        int
	Config    *config.Config
	Settings  settings.Settings
	Surface   surface.Surface
	Camera    *camera.Controller
	Scheduler *loop.Scheduler
	Rand      *rand.Rand
	Stats     StatsSink
	Logger    *slog.Logger

	OnRegenerate RegenerateFunc
}

// Instance owns one generator and level manager for a fixed layout.
// It moves Constructing -> Running -> Destroying -> Destroyed and never back.
type Instance struct {
	id     int
	state  State
	cfg    *config.Config
	surf   surface.Surface
	cam    *camera.Controller
	sched  *loop.Scheduler
	rng    *rand.Rand
	stats  StatsSink
	logger *slog.Logger

	gen    *orbit.Generator
	orbit  *orbit.Orbit
	levels *systems.LevelManager

	speed         float64
	rotationSpeed float64

	frameTask *loop.Task
	regenTask *loop.Task
	sets      []surface.Set

	frames        uint64
	wrapped       uint64
	refreshed     uint64
	regenerations int
	degenerate    int
	presentErrors int

	onRegenerate RegenerateFunc
}

// NewInstance allocates the orbit and every particle set and fills them with
// an initial orbit. Missing collaborators fail fast.
func NewInstance(opts InstanceOptions) (*Instance, error) {
	switch {
	case opts.Surface == nil:
		return nil, fmt.Errorf("new instance: %w", ErrMissingSurface)
	case opts.Config == nil:
		return nil, fmt.Errorf("new instance: %w", ErrMissingConfig)
	case opts.Scheduler == nil:
		return nil, fmt.Errorf("new instance: %w", ErrMissingScheduler)
	case opts.Camera == nil:
		return nil, fmt.Errorf("new instance: %w", ErrMissingCamera)
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("new instance: %w", err)
	}

	cfg := opts.Config
	s := opts.Settings

	inst := &Instance{
		id:            opts.ID,
		state:         StateConstructing,
		cfg:           cfg,
		surf:          opts.Surface,
		cam:           opts.Camera,
		sched:         opts.Scheduler,
		rng:           opts.Rand,
		stats:         opts.Stats,
		logger:        opts.Logger,
		speed:         s.Speed,
		rotationSpeed: s.RotationSpeed,
		onRegenerate:  opts.OnRegenerate,
	}
	if inst.rng == nil {
		inst.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if inst.stats == nil {
		inst.stats = nopSink{}
	}
	if inst.logger == nil {
		inst.logger = slog.Default()
	}
	inst.logger = inst.logger.With("instance", inst.id)

	inst.gen = orbit.NewGenerator(orbit.Options{
		Ranges:            orbitRanges(cfg.Orbit.Ranges),
		Scale:             cfg.Orbit.Scale,
		Workers:           cfg.Orbit.Workers,
		ParallelThreshold: cfg.Orbit.ParallelThreshold,
	})
	inst.orbit = orbit.New(s.SubsetCount, s.PointsPerSubset)

	start := time.Now()
	var err error
	for attempt := 0; attempt < initialAttempts; attempt++ {
		if err = inst.gen.Generate(inst.orbit, inst.rng); !errors.Is(err, orbit.ErrDegenerate) {
			break
		}
		inst.degenerate++
	}
	if err != nil {
		inst.logger.Warn("initial orbit degenerate, starting from the origin", "error", err)
	}

	inst.levels, err = systems.NewLevelManager(systems.LevelOptions{
		Levels:     s.LevelCount,
		LevelDepth: cfg.Field.LevelDepth,
		Scale:      cfg.Orbit.Scale,
		Saturation: cfg.Color.Saturation,
		Brightness: cfg.Color.Brightness,
	}, inst.orbit, inst.gen, inst.surf, inst.rng)
	if err != nil {
		inst.gen.Close()
		return nil, fmt.Errorf("new instance: %w", err)
	}
	inst.sets = make([]surface.Set, 0, inst.levels.Len())

	inst.logger.Info("instance constructed",
		"subsets", s.SubsetCount,
		"points", s.PointsPerSubset,
		"levels", s.LevelCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return inst, nil
}

// orbitRanges converts configured parameter ranges.
func orbitRanges(r config.ParamRanges) orbit.Ranges {
	conv := func(c config.Range) orbit.Range { return orbit.Range{Min: c.Min, Max: c.Max} }
	return orbit.Ranges{A: conv(r.A), B: conv(r.B), C: conv(r.C), D: conv(r.D), E: conv(r.E)}
}

// Start registers the frame and regeneration tasks.
func (i *Instance) Start() error {
	if i.state != StateConstructing {
		if i.state == StateDestroyed || i.state == StateDestroying {
			return fmt.Errorf("start instance %d: %w", i.id, ErrDestroyed)
		}
		return fmt.Errorf("start instance %d: already %v", i.id, i.state)
	}

	i.frameTask = i.sched.Every(fmt.Sprintf("instance-%d.frame", i.id), 0, i.frame)
	i.regenTask = i.sched.Every(fmt.Sprintf("instance-%d.regenerate", i.id), i.cfg.Timing.RegenerateInterval, i.regenerate)
	i.state = StateRunning
	return nil
}

// frame eases the camera, scrolls the field and presents it.
func (i *Instance) frame() {
	if i.state != StateRunning {
		return
	}

	i.stats.StartPhase(telemetry.PhaseCamera)
	i.cam.Update()

	i.stats.StartPhase(telemetry.PhaseLevels)
	adv := i.levels.Advance(i.speed, i.rotationSpeed, i.cam.Z)
	i.wrapped += uint64(adv.Wrapped)
	i.refreshed += uint64(adv.Refreshed)

	i.stats.StartPhase(telemetry.PhasePresent)
	i.sets = i.levels.AppendSets(i.sets[:0])
	err := i.surf.Present(surface.Frame{
		Index:  i.frames,
		Camera: i.cam.Pose(),
		Sets:   i.sets,
	})
	i.stats.EndPhase()

	if err != nil {
		i.presentErrors++
		// First failure, then every 600th
		if i.presentErrors%600 == 1 {
			i.logger.Warn("present failed", "error", err, "failures", i.presentErrors)
		}
	}
	i.frames++
}

// regenerate replaces the orbit. Sets pick it up as they wrap.
func (i *Instance) regenerate() {
	if i.state != StateRunning {
		return
	}

	i.stats.StartPhase(telemetry.PhaseRegenerate)
	start := time.Now()
	err := i.levels.Regenerate(i.rng)
	elapsed := time.Since(start)
	i.stats.EndPhase()

	switch {
	case errors.Is(err, orbit.ErrDegenerate):
		i.degenerate++
		i.logger.Warn("degenerate orbit, keeping previous geometry", "error", err)
	case err != nil:
		i.logger.Error("regeneration failed", "error", err)
	default:
		i.regenerations++
	}

	if i.onRegenerate != nil {
		i.onRegenerate(i.orbit, elapsed, err)
	}
}

// Regenerate runs one regeneration immediately.
func (i *Instance) Regenerate() {
	i.regenerate()
}

// SetSpeed sets the depth advanced per frame. Negative values clamp to 0.
func (i *Instance) SetSpeed(v float64) {
	i.speed = max(0, v)
}

// SetRotationSpeed sets the rotation per frame in radians.
func (i *Instance) SetRotationSpeed(v float64) {
	i.rotationSpeed = v
}

// Destroy stops both tasks, then releases every buffer and the worker pool.
// It returns the number of buffers that failed to release and their errors.
func (i *Instance) Destroy() (int, error) {
	if i.state == StateDestroying || i.state == StateDestroyed {
		return 0, fmt.Errorf("destroy instance %d: %w", i.id, ErrDestroyed)
	}
	i.state = StateDestroying

	if i.frameTask != nil {
		i.frameTask.Stop()
	}
	if i.regenTask != nil {
		i.regenTask.Stop()
	}

	failed, err := i.levels.Release()
	i.gen.Close()
	i.sets = nil

	i.state = StateDestroyed
	i.logger.Info("instance destroyed",
		"frames", i.frames,
		"regenerations", i.regenerations,
		"leaked_buffers", failed,
	)
	return failed, err
}

// ID returns the instance identifier.
func (i *Instance) ID() int { return i.id }

// State returns the lifecycle state.
func (i *Instance) State() State { return i.state }

// Levels returns the level manager.
func (i *Instance) Levels() *systems.LevelManager { return i.levels }

// Orbit returns the shared orbit.
func (i *Instance) Orbit() *orbit.Orbit { return i.orbit }

// Speed returns the current depth speed.
func (i *Instance) Speed() float64 { return i.speed }

// RotationSpeed returns the current rotation speed.
func (i *Instance) RotationSpeed() float64 { return i.rotationSpeed }

// Frames returns the number of frames presented.
func (i *Instance) Frames() uint64 { return i.frames }

// Regenerations returns the number of successful regenerations.
func (i *Instance) Regenerations() int { return i.regenerations }

// DegenerateOrbits returns how many generations hit a degenerate bounding box.
func (i *Instance) DegenerateOrbits() int { return i.degenerate }
