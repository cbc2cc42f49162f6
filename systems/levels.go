package systems

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/hopalong/components"
	"github.com/pthm-cable/hopalong/orbit"
	"github.com/pthm-cable/hopalong/surface"
)

// LevelOptions configures a LevelManager.
type LevelOptions struct {
	Levels     int
	LevelDepth float64
	Scale      float64 // Orbit half-extent; sets start staggered from Scale/2
	Saturation float64
	Brightness float64
}

// AdvanceStats reports what one Advance did.
type AdvanceStats struct {
	Wrapped   int // Sets moved back to the far end of the field
	Refreshed int // Wrapped sets that took new geometry
}

// LevelManager owns the levels × subsets particle sets of one simulation.
// Each set is an ark entity; the orbit is shared and rewritten in place.
type LevelManager struct {
	world  *ecs.World
	mapper *ecs.Map5[
		components.Placement,
		components.Motion,
		components.Tint,
		components.Refresh,
		components.Buffer,
	]
	filter *ecs.Filter5[
		components.Placement,
		components.Motion,
		components.Tint,
		components.Refresh,
		components.Buffer,
	]

	orbit *orbit.Orbit
	gen   *orbit.Generator

	levels     int
	subsets    int
	levelDepth float64
	wrapDepth  float64
	scale      float64
	saturation float64
	brightness float64

	// Pending hue per subset, taken by each set at its next refresh
	hues []float64
	sets int
}

// NewLevelManager creates one set per (level, subset), allocates its buffer
// and fills it with the current orbit. On allocation failure every buffer
// already allocated is released and the error is returned.
func NewLevelManager(opts LevelOptions, o *orbit.Orbit, gen *orbit.Generator, surf surface.Surface, rng *rand.Rand) (*LevelManager, error) {
	if opts.Levels < 1 {
		return nil, fmt.Errorf("levels must be >= 1, got %d", opts.Levels)
	}

	world := ecs.NewWorld()
	m := &LevelManager{
		world: world,
		mapper: ecs.NewMap5[
			components.Placement,
			components.Motion,
			components.Tint,
			components.Refresh,
			components.Buffer,
		](world),
		filter: ecs.NewFilter5[
			components.Placement,
			components.Motion,
			components.Tint,
			components.Refresh,
			components.Buffer,
		](world),
		orbit:      o,
		gen:        gen,
		levels:     opts.Levels,
		subsets:    o.SubsetCount(),
		levelDepth: opts.LevelDepth,
		scale:      opts.Scale,
		wrapDepth:  -float64(opts.Levels-1) * opts.LevelDepth,
		saturation: opts.Saturation,
		brightness: opts.Brightness,
		hues:       make([]float64, o.SubsetCount()),
	}
	for s := range m.hues {
		m.hues[s] = rng.Float64()
	}

	points := o.PointsPerSubset()
	var handles []surface.Buffer
	for level := 0; level < m.levels; level++ {
		for subset := 0; subset < m.subsets; subset++ {
			place := components.Placement{Level: level, Subset: subset}

			handle, err := surf.NewBuffer(place.Key(), points)
			if err != nil {
				var errs []error
				for _, h := range handles {
					if rerr := h.Release(); rerr != nil {
						errs = append(errs, rerr)
					}
				}
				return nil, errors.Join(fmt.Errorf("allocating buffer %v: %w", place.Key(), err), errors.Join(errs...))
			}
			handles = append(handles, handle)

			tint := components.Tint{Hue: m.hues[subset], Color: m.color(m.hues[subset])}
			handle.Upload(o.Subsets[subset].Vertices)
			handle.SetColor(tint.Color)

			motion := components.Motion{Depth: m.initialDepth(level, subset)}
			m.mapper.NewEntity(&place, &motion, &tint, &components.Refresh{}, &components.Buffer{Handle: handle})
			m.sets++
		}
	}

	return m, nil
}

// initialDepth staggers subsets within a level so they do not wrap together.
func (m *LevelManager) initialDepth(level, subset int) float64 {
	return -m.levelDepth*float64(level) -
		float64(subset)*m.levelDepth/float64(m.subsets) +
		m.scale/2
}

// color converts a hue fraction with the fixed saturation and brightness.
func (m *LevelManager) color(hue float64) colorful.Color {
	return colorful.Hsv(hue*360, m.saturation, m.brightness).Clamped()
}

// Advance moves every set by the deltas. A set that passes cameraZ wraps to
// the back of the field and, if dirty, takes its subset's current geometry
// and pending hue.
func (m *LevelManager) Advance(deltaDepth, deltaRotation, cameraZ float64) AdvanceStats {
	var stats AdvanceStats

	query := m.filter.Query()
	for query.Next() {
		place, motion, tint, refresh, buf := query.Get()

		motion.Depth += deltaDepth
		motion.Rotation += deltaRotation

		if motion.Depth <= cameraZ {
			continue
		}
		motion.Depth = m.wrapDepth
		stats.Wrapped++

		if !refresh.Dirty {
			continue
		}
		buf.Handle.Upload(m.orbit.Subsets[place.Subset].Vertices)
		tint.Hue = m.hues[place.Subset]
		tint.Color = m.color(tint.Hue)
		buf.Handle.SetColor(tint.Color)
		refresh.Dirty = false
		stats.Refreshed++
	}

	return stats
}

// Regenerate rewrites the orbit, draws a new hue per subset and marks every
// set dirty. On error (including orbit.ErrDegenerate) nothing is marked and
// the sets keep their current geometry.
func (m *LevelManager) Regenerate(rng *rand.Rand) error {
	if err := m.gen.Generate(m.orbit, rng); err != nil {
		return err
	}
	for s := range m.hues {
		m.hues[s] = rng.Float64()
	}

	query := m.filter.Query()
	for query.Next() {
		_, _, _, refresh, _ := query.Get()
		refresh.Dirty = true
	}
	return nil
}

// AppendSets appends the presentation view of every set to dst.
func (m *LevelManager) AppendSets(dst []surface.Set) []surface.Set {
	query := m.filter.Query()
	for query.Next() {
		place, motion, _, _, buf := query.Get()
		dst = append(dst, surface.Set{
			Key:      place.Key(),
			Depth:    motion.Depth,
			Rotation: motion.Rotation,
			Buffer:   buf.Handle,
		})
	}
	return dst
}

// Each calls fn with a copy of every set's state.
func (m *LevelManager) Each(fn func(components.Placement, components.Motion, components.Tint, components.Refresh)) {
	query := m.filter.Query()
	for query.Next() {
		place, motion, tint, refresh, _ := query.Get()
		fn(*place, *motion, *tint, *refresh)
	}
}

// Orbit returns the shared orbit.
func (m *LevelManager) Orbit() *orbit.Orbit {
	return m.orbit
}

// Len returns the number of particle sets.
func (m *LevelManager) Len() int {
	return m.sets
}

// Levels returns the level count.
func (m *LevelManager) Levels() int {
	return m.levels
}

// WrapDepth returns the depth a set jumps back to after passing the camera.
func (m *LevelManager) WrapDepth() float64 {
	return m.wrapDepth
}

// Release frees every buffer and removes all sets. It returns how many
// releases failed along with their joined errors.
func (m *LevelManager) Release() (int, error) {
	var errs []error
	var entities []ecs.Entity

	query := m.filter.Query()
	for query.Next() {
		place, _, _, _, buf := query.Get()
		entities = append(entities, query.Entity())
		if buf.Handle == nil {
			continue
		}
		if err := buf.Handle.Release(); err != nil {
			errs = append(errs, fmt.Errorf("set %v: %w", place.Key(), err))
		}
		buf.Handle = nil
	}

	for _, e := range entities {
		m.world.RemoveEntity(e)
	}
	m.sets = 0

	return len(errs), errors.Join(errs...)
}
