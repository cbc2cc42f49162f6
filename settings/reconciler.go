package settings

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/hopalong/loop"
)

// Runtime is what the reconciler drives.
type Runtime interface {
	// ApplyLive pushes live fields into the running instance.
	ApplyLive(p Partial)
	// Rebuild replaces the running instance with one built from s.
	Rebuild(s Settings) error
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Runtime   Runtime
	Scheduler *loop.Scheduler
	Debounce  time.Duration
	Initial   Settings // Settings the current instance was built with
	Logger    *slog.Logger
}

// Reconciler classifies settings changes: live fields are applied at once,
// structural fields are coalesced and applied by a single rebuild once no
// further structural change has arrived for the debounce window.
type Reconciler struct {
	runtime  Runtime
	sched    *loop.Scheduler
	debounce time.Duration
	logger   *slog.Logger

	active    Settings // What the running instance was built with
	canonical Settings // What observers see
	pending   Partial  // Structural fields awaiting rebuild
	timer     *loop.Task

	observers []observer
	nextID    int

	rebuilds  int
	failures  int
	publishes int
}

type observer struct {
	id int
	fn func(Settings)
}

// NewReconciler creates a reconciler for an instance built from opts.Initial.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		runtime:   opts.Runtime,
		sched:     opts.Scheduler,
		debounce:  opts.Debounce,
		logger:    logger,
		active:    opts.Initial,
		canonical: opts.Initial,
	}
}

// Apply validates p, applies its live fields, schedules its structural
// fields and publishes the resulting settings. An invalid p changes nothing.
func (r *Reconciler) Apply(p Partial) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.IsEmpty() {
		return nil
	}

	if live := p.Live(); !live.IsEmpty() {
		r.canonical = r.canonical.Merge(live)
		r.runtime.ApplyLive(r.canonical.Select(live))
	}

	if structural := p.Structural(); !structural.IsEmpty() {
		r.pending = r.pending.Overlay(structural)
		r.canonical = r.canonical.Merge(structural)

		if r.timer != nil {
			r.timer.Stop()
		}
		r.timer = r.sched.After("settings.rebuild", r.debounce, r.fire)
	}

	r.publish()
	return nil
}

// fire runs the pending rebuild.
func (r *Reconciler) fire() {
	r.timer = nil
	if r.pending.IsEmpty() {
		return
	}
	r.pending = Partial{}

	target := r.canonical
	if err := r.runtime.Rebuild(target); err != nil {
		r.failures++
		r.logger.Error("rebuild failed, keeping running instance",
			"error", err,
			"points", target.PointsPerSubset,
			"subsets", target.SubsetCount,
			"levels", target.LevelCount,
		)
		r.canonical = r.canonical.withStructure(r.active)
	} else {
		r.rebuilds++
		r.active = target
	}

	r.publish()
}

// Flush runs a pending rebuild now instead of waiting for the debounce.
func (r *Reconciler) Flush() {
	if r.timer == nil {
		return
	}
	r.timer.Stop()
	r.fire()
}

// Close cancels any pending rebuild.
func (r *Reconciler) Close() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.pending = Partial{}
}

// Settings returns the canonical settings, including pending structural values.
func (r *Reconciler) Settings() Settings {
	return r.canonical
}

// Active returns the settings the running instance was built with.
func (r *Reconciler) Active() Settings {
	return r.active
}

// Pending reports whether a structural rebuild is scheduled.
func (r *Reconciler) Pending() bool {
	return r.timer != nil
}

// Rebuilds returns the number of successful rebuilds.
func (r *Reconciler) Rebuilds() int {
	return r.rebuilds
}

// Failures returns the number of failed rebuilds.
func (r *Reconciler) Failures() int {
	return r.failures
}

// Publishes returns how many times observers were notified.
func (r *Reconciler) Publishes() int {
	return r.publishes
}

// Subscribe registers fn to receive every published settings value and
// returns a function that removes it.
func (r *Reconciler) Subscribe(fn func(Settings)) func() {
	r.nextID++
	id := r.nextID
	r.observers = append(r.observers, observer{id: id, fn: fn})

	return func() {
		for i, o := range r.observers {
			if o.id == id {
				r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
				return
			}
		}
	}
}

func (r *Reconciler) publish() {
	r.publishes++
	s := r.canonical
	// Observers may unsubscribe while being notified
	for _, o := range append([]observer(nil), r.observers...) {
		o.fn(s)
	}
}
