// Package orbit generates Hopalong attractor orbits.
//
// An Orbit is allocated once for a fixed subset/point layout and rewritten in
// place by every generation, so the hot path never allocates.
package orbit

import (
	"fmt"
	"math/rand"
)

// Params are the five real parameters of the Hopalong map.
type Params struct {
	A, B, C, D, E float64
}

// Range is a closed sampling interval.
type Range struct {
	Min, Max float64
}

// sample draws uniformly from the range.
func (r Range) sample(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// Contains reports whether v lies in the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Ranges holds the sampling interval of each parameter.
type Ranges struct {
	A, B, C, D, E Range
}

// DefaultRanges returns the classic parameter ranges.
func DefaultRanges() Ranges {
	return Ranges{
		A: Range{Min: -30, Max: 30},
		B: Range{Min: 0.2, Max: 1.8},
		C: Range{Min: 5, Max: 17},
		D: Range{Min: 0, Max: 10},
		E: Range{Min: 0, Max: 12},
	}
}

// Shuffle draws a complete new parameter set.
func (r Ranges) Shuffle(rng *rand.Rand) Params {
	return Params{
		A: r.A.sample(rng),
		B: r.B.sample(rng),
		C: r.C.sample(rng),
		D: r.D.sample(rng),
		E: r.E.sample(rng),
	}
}

// Contains reports whether every parameter lies in its range.
func (r Ranges) Contains(p Params) bool {
	return r.A.Contains(p.A) && r.B.Contains(p.B) && r.C.Contains(p.C) &&
		r.D.Contains(p.D) && r.E.Contains(p.E)
}

// Bounds is the bounding box of the raw attractor coordinates.
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
}

// merge grows b to include o.
func (b *Bounds) merge(o Bounds) {
	if o.XMin < b.XMin {
		b.XMin = o.XMin
	}
	if o.XMax > b.XMax {
		b.XMax = o.XMax
	}
	if o.YMin < b.YMin {
		b.YMin = o.YMin
	}
	if o.YMax > b.YMax {
		b.YMax = o.YMax
	}
}

// String implements fmt.Stringer.
func (b Bounds) String() string {
	return fmt.Sprintf("x[%g, %g] y[%g, %g]", b.XMin, b.XMax, b.YMin, b.YMax)
}

// Subset is one independently seeded strand of points.
// Point i is (X[i], Y[i]) in attractor space and Vertices[3i:3i+3] normalized.
type Subset struct {
	X, Y     []float64
	Vertices []float32
}

// Len returns the number of points in the subset.
func (s *Subset) Len() int {
	return len(s.X)
}

// Vertex returns the normalized position of point i.
func (s *Subset) Vertex(i int) (x, y, z float32) {
	return s.Vertices[3*i], s.Vertices[3*i+1], s.Vertices[3*i+2]
}

// Orbit is the result of the most recent generation.
type Orbit struct {
	Subsets []Subset
	Bounds  Bounds
	ScaleX  float64
	ScaleY  float64

	Params     Params
	Formula    Formula
	Generation uint64 // Successful generations so far
}

// New allocates an orbit with the given layout. Vertices start at the origin.
func New(subsetCount, pointsPerSubset int) *Orbit {
	o := &Orbit{Subsets: make([]Subset, subsetCount)}
	for s := range o.Subsets {
		o.Subsets[s] = Subset{
			X:        make([]float64, pointsPerSubset),
			Y:        make([]float64, pointsPerSubset),
			Vertices: make([]float32, 3*pointsPerSubset),
		}
	}
	return o
}

// SubsetCount returns the number of subsets.
func (o *Orbit) SubsetCount() int {
	return len(o.Subsets)
}

// PointsPerSubset returns the number of points in each subset.
func (o *Orbit) PointsPerSubset() int {
	if len(o.Subsets) == 0 {
		return 0
	}
	return o.Subsets[0].Len()
}
