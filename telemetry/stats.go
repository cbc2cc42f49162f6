package telemetry

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/hopalong/orbit"
)

// OrbitStats summarizes one generated orbit.
type OrbitStats struct {
	Generation uint64  `csv:"generation"`
	Formula    string  `csv:"formula"`
	A          float64 `csv:"a"`
	B          float64 `csv:"b"`
	C          float64 `csv:"c"`
	D          float64 `csv:"d"`
	E          float64 `csv:"e"`

	// Raw attractor extent
	XMin   float64 `csv:"x_min"`
	XMax   float64 `csv:"x_max"`
	YMin   float64 `csv:"y_min"`
	YMax   float64 `csv:"y_max"`
	ScaleX float64 `csv:"scale_x"`
	ScaleY float64 `csv:"scale_y"`

	// Raw coordinate distribution (sampled)
	MeanX float64 `csv:"mean_x"`
	StdX  float64 `csv:"std_x"`
	MeanY float64 `csv:"mean_y"`
	StdY  float64 `csv:"std_y"`

	// Distance of normalized points from the field axis (sampled)
	RadiusP50 float64 `csv:"radius_p50"`
	RadiusP90 float64 `csv:"radius_p90"`

	Samples   int     `csv:"samples"`
	ElapsedMS float64 `csv:"elapsed_ms"`
}

// OrbitSampler computes OrbitStats, reusing its scratch buffers.
type OrbitSampler struct {
	stride int
	xs, ys []float64
	radii  []float64
}

// NewOrbitSampler creates a sampler that looks at every stride-th point.
func NewOrbitSampler(stride int) *OrbitSampler {
	if stride < 1 {
		stride = 1
	}
	return &OrbitSampler{stride: stride}
}

// Sample summarizes o. elapsed is the generation time.
func (s *OrbitSampler) Sample(o *orbit.Orbit, elapsed time.Duration) OrbitStats {
	st := OrbitStats{
		Generation: o.Generation,
		Formula:    o.Formula.String(),
		A:          o.Params.A,
		B:          o.Params.B,
		C:          o.Params.C,
		D:          o.Params.D,
		E:          o.Params.E,
		XMin:       o.Bounds.XMin,
		XMax:       o.Bounds.XMax,
		YMin:       o.Bounds.YMin,
		YMax:       o.Bounds.YMax,
		ScaleX:     o.ScaleX,
		ScaleY:     o.ScaleY,
		ElapsedMS:  float64(elapsed.Microseconds()) / 1000,
	}

	s.xs, s.ys, s.radii = s.xs[:0], s.ys[:0], s.radii[:0]
	for si := range o.Subsets {
		sub := &o.Subsets[si]
		for i := 0; i < sub.Len(); i += s.stride {
			s.xs = append(s.xs, sub.X[i])
			s.ys = append(s.ys, sub.Y[i])
			vx, vy, _ := sub.Vertex(i)
			s.radii = append(s.radii, math.Hypot(float64(vx), float64(vy)))
		}
	}
	st.Samples = len(s.xs)
	if st.Samples == 0 {
		return st
	}

	st.MeanX, st.StdX = stat.MeanStdDev(s.xs, nil)
	st.MeanY, st.StdY = stat.MeanStdDev(s.ys, nil)
	if st.Samples == 1 {
		st.StdX, st.StdY = 0, 0
	}

	sort.Float64s(s.radii)
	st.RadiusP50 = stat.Quantile(0.5, stat.Empirical, s.radii, nil)
	st.RadiusP90 = stat.Quantile(0.9, stat.Empirical, s.radii, nil)

	return st
}

// LogValue implements slog.LogValuer for structured logging.
func (s OrbitStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("generation", s.Generation),
		slog.String("formula", s.Formula),
		slog.Float64("a", s.A),
		slog.Float64("b", s.B),
		slog.Float64("c", s.C),
		slog.Float64("d", s.D),
		slog.Float64("e", s.E),
		slog.Float64("scale_x", s.ScaleX),
		slog.Float64("scale_y", s.ScaleY),
		slog.Float64("radius_p50", s.RadiusP50),
		slog.Float64("elapsed_ms", s.ElapsedMS),
	)
}
