package orbit

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
)

// ErrDegenerate is returned when the bounding box has zero width on an axis
// (or non-finite extents), so the orbit cannot be normalized.
var ErrDegenerate = errors.New("orbit: degenerate bounding box")

// seedSpread scales the per-subset starting offset.
const seedSpread = 0.005

// Seed is the starting point of one subset.
type Seed struct {
	X, Y float64
}

// Options configures a Generator.
type Options struct {
	Ranges            Ranges
	Scale             float64 // Normalized half-extent
	Workers           int     // 0 = GOMAXPROCS, 1 = sequential
	ParallelThreshold int     // Minimum total points before the pool is used
}

// Generator produces orbits in place.
type Generator struct {
	ranges    Ranges
	scale     float64
	threshold int

	pool   *pool
	seeds  []Seed
	bounds []Bounds // per-subset scratch
}

// NewGenerator creates a generator. Workers are started lazily on the first
// generation that crosses the parallel threshold.
func NewGenerator(opts Options) *Generator {
	workers := opts.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g := &Generator{
		ranges:    opts.Ranges,
		scale:     opts.Scale,
		threshold: opts.ParallelThreshold,
	}
	if workers > 1 {
		g.pool = newPool(workers)
	}
	return g
}

// Scale returns the normalized half-extent.
func (g *Generator) Scale() float64 {
	return g.scale
}

// Generate resamples parameters and formula, then rewrites o in place.
// Random draws happen in a fixed order (params, formula, seeds) before any
// iteration, so the result depends only on rng and not on the worker count.
func (g *Generator) Generate(o *Orbit, rng *rand.Rand) error {
	params := g.ranges.Shuffle(rng)
	formula := PickFormula(rng.Float64())

	g.seeds = g.seeds[:0]
	for s := range o.Subsets {
		// Use a different starting point for each subset
		g.seeds = append(g.seeds, Seed{
			X: float64(s) * seedSpread * (0.5 - rng.Float64()),
			Y: float64(s) * seedSpread * (0.5 - rng.Float64()),
		})
	}

	return g.Run(o, params, formula, g.seeds)
}

// Run iterates the map from the given seeds and normalizes the result.
// len(seeds) must equal len(o.Subsets).
//
// On ErrDegenerate the raw points, bounds, params and formula are updated,
// the failing scale is set to 0 and the previous vertices are left untouched.
func (g *Generator) Run(o *Orbit, params Params, formula Formula, seeds []Seed) error {
	if len(seeds) != len(o.Subsets) {
		return fmt.Errorf("orbit: %d seeds for %d subsets", len(seeds), len(o.Subsets))
	}

	o.Params = params
	o.Formula = formula

	n := len(o.Subsets)
	if cap(g.bounds) < n {
		g.bounds = make([]Bounds, n)
	}
	g.bounds = g.bounds[:n]

	iterateRange := func(start, end int) {
		for s := start; s < end; s++ {
			g.bounds[s] = iterate(&o.Subsets[s], params, formula, seeds[s].X, seeds[s].Y)
		}
	}
	g.each(n, o.PointsPerSubset(), iterateRange)

	// Bounds start at the origin, matching a single running min/max over all subsets
	var b Bounds
	for i := range g.bounds {
		b.merge(g.bounds[i])
	}
	o.Bounds = b

	spanX := b.XMax - b.XMin
	spanY := b.YMax - b.YMin
	o.ScaleX = 2 * g.scale / spanX
	o.ScaleY = 2 * g.scale / spanY

	if !usableSpan(spanX) || !usableSpan(spanY) {
		if !usableSpan(spanX) {
			o.ScaleX = 0
		}
		if !usableSpan(spanY) {
			o.ScaleY = 0
		}
		return fmt.Errorf("%w: %v", ErrDegenerate, b)
	}

	normalizeRange := func(start, end int) {
		for s := start; s < end; s++ {
			normalize(&o.Subsets[s], b, spanX, spanY, g.scale)
		}
	}
	g.each(n, o.PointsPerSubset(), normalizeRange)

	o.Generation++
	return nil
}

// Close stops the worker pool.
func (g *Generator) Close() {
	if g.pool != nil {
		g.pool.stop()
	}
}

// each runs fn over [0, n) subsets, in parallel when worthwhile.
func (g *Generator) each(n, pointsPerSubset int, fn func(start, end int)) {
	if g.pool == nil || n < 2 || n*pointsPerSubset < g.threshold {
		fn(0, n)
		return
	}
	g.pool.run(n, fn)
}

// iterate fills one subset from its seed and returns its bounds (which always
// include the origin). Each point depends on the previous one.
func iterate(sub *Subset, p Params, f Formula, x, y float64) Bounds {
	var b Bounds
	xs, ys := sub.X, sub.Y
	for i := range xs {
		x, y = step(p, f, x, y)
		xs[i] = x
		ys[i] = y

		if x < b.XMin {
			b.XMin = x
		} else if x > b.XMax {
			b.XMax = x
		}
		if y < b.YMin {
			b.YMin = y
		} else if y > b.YMax {
			b.YMax = y
		}
	}
	return b
}

// normalize maps raw coordinates into [-scale, scale].
// Written as a ratio so XMin and XMax land exactly on -scale and +scale.
func normalize(sub *Subset, b Bounds, spanX, spanY, scale float64) {
	twoScale := 2 * scale
	xs, ys, v := sub.X, sub.Y, sub.Vertices
	for i := range xs {
		v[3*i] = float32(twoScale*((xs[i]-b.XMin)/spanX) - scale)
		v[3*i+1] = float32(twoScale*((ys[i]-b.YMin)/spanY) - scale)
	}
}

// usableSpan reports whether a bounding-box extent can be divided by.
func usableSpan(span float64) bool {
	return span > 0 && !math.IsInf(span, 0) && !math.IsNaN(span)
}

// Generate is a one-shot convenience: it allocates an orbit with the given
// layout and fills it from params using a sequential generator. The formula
// and seeds are drawn from rng.
func Generate(params Params, subsetCount, pointsPerSubset int, scale float64, rng *rand.Rand) (*Orbit, error) {
	o := New(subsetCount, pointsPerSubset)
	g := NewGenerator(Options{Scale: scale, Workers: 1})
	defer g.Close()

	formula := PickFormula(rng.Float64())
	seeds := make([]Seed, subsetCount)
	for s := range seeds {
		seeds[s] = Seed{
			X: float64(s) * seedSpread * (0.5 - rng.Float64()),
			Y: float64(s) * seedSpread * (0.5 - rng.Float64()),
		}
	}
	return o, g.Run(o, params, formula, seeds)
}
