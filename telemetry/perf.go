package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Phase names for one scheduler step.
const (
	PhaseCamera     = "camera"
	PhaseLevels     = "levels"
	PhasePresent    = "present"
	PhaseRegenerate = "regenerate"
)

// Phases lists every phase in step order.
var Phases = []string{PhaseCamera, PhaseLevels, PhasePresent, PhaseRegenerate}

// PerfCollector keeps step and frame timings over a rolling window of steps.
// It implements the game's stats sink; phases are opened with StartPhase and
// closed by the next StartPhase, EndPhase or EndTick.
type PerfCollector struct {
	window int
	next   int
	filled int

	// Per-step samples in microseconds, indexed by ring position
	ticks  []float64
	phases map[string][]float64

	tickStart  time.Time
	phaseStart time.Time
	phase      string
	open       map[string]time.Duration

	lastFrame time.Time
	frames    []float64
	frameNext int
	frameN    int
}

// NewPerfCollector creates a collector averaging over window steps.
// A non-positive window means 60.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{
		window: window,
		ticks:  make([]float64, window),
		phases: make(map[string][]float64),
		open:   make(map[string]time.Duration),
		frames: make([]float64, window),
	}
}

// StartTick begins timing a step.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	clear(p.open)
	p.phase = ""
}

// StartPhase closes the open phase, if any, and opens phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.phase != "" {
		p.open[p.phase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.phase = phase
}

// EndPhase closes the open phase. Time until the next StartPhase is charged
// to the step only.
func (p *PerfCollector) EndPhase() {
	if p.phase == "" {
		return
	}
	p.open[p.phase] += time.Since(p.phaseStart)
	p.phase = ""
}

// EndTick closes the step and stores its sample.
func (p *PerfCollector) EndTick() {
	p.EndPhase()

	p.ticks[p.next] = micros(time.Since(p.tickStart))
	for name, ring := range p.phases {
		ring[p.next] = micros(p.open[name])
	}
	for name, d := range p.open {
		if _, ok := p.phases[name]; !ok {
			ring := make([]float64, p.window)
			ring[p.next] = micros(d)
			p.phases[name] = ring
		}
	}

	p.next = (p.next + 1) % p.window
	if p.filled < p.window {
		p.filled++
	}
}

// RecordFrame marks a presented frame. The interval between calls feeds FPS.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrame.IsZero() {
		p.frames[p.frameNext] = micros(now.Sub(p.lastFrame))
		p.frameNext = (p.frameNext + 1) % p.window
		if p.frameN < p.window {
			p.frameN++
		}
	}
	p.lastFrame = now
}

// PerfStats aggregates the current window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	P95TickDuration time.Duration
	TicksPerSecond  float64

	// Average duration and share of the average step per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	// Mean interval between RecordFrame calls
	FrameDuration time.Duration
	FPS           float64
}

// Stats computes statistics over the samples in the window.
func (p *PerfCollector) Stats() PerfStats {
	st := PerfStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}

	if p.frameN > 0 {
		mean := stat.Mean(p.frames[:p.frameN], nil)
		st.FrameDuration = fromMicros(mean)
		if mean > 0 {
			st.FPS = 1e6 / mean
		}
	}

	if p.filled == 0 {
		return st
	}

	ticks := p.ticks[:p.filled]
	mean := stat.Mean(ticks, nil)
	st.AvgTickDuration = fromMicros(mean)
	st.MinTickDuration = fromMicros(floats.Min(ticks))
	st.MaxTickDuration = fromMicros(floats.Max(ticks))

	sorted := append([]float64(nil), ticks...)
	sort.Float64s(sorted)
	st.P95TickDuration = fromMicros(stat.Quantile(0.95, stat.Empirical, sorted, nil))

	if mean > 0 {
		st.TicksPerSecond = 1e6 / mean
	}

	for name, ring := range p.phases {
		avg := stat.Mean(ring[:p.filled], nil)
		st.PhaseAvg[name] = fromMicros(avg)
		if mean > 0 {
			st.PhasePct[name] = avg / mean * 100
		}
	}
	return st
}

func micros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}

func fromMicros(us float64) time.Duration {
	return time.Duration(us * float64(time.Microsecond))
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("p95_tick_us", s.P95TickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	Step          uint64  `csv:"step"`
	AvgTickUS     int64   `csv:"avg_tick_us"`
	MinTickUS     int64   `csv:"min_tick_us"`
	MaxTickUS     int64   `csv:"max_tick_us"`
	P95TickUS     int64   `csv:"p95_tick_us"`
	TicksPerSec   float64 `csv:"ticks_per_sec"`
	FPS           float64 `csv:"fps"`
	CameraPct     float64 `csv:"camera_pct"`
	LevelsPct     float64 `csv:"levels_pct"`
	PresentPct    float64 `csv:"present_pct"`
	RegeneratePct float64 `csv:"regenerate_pct"`
}

// ToCSV flattens the stats for the window ending at step.
func (s PerfStats) ToCSV(step uint64) PerfStatsCSV {
	return PerfStatsCSV{
		Step:          step,
		AvgTickUS:     s.AvgTickDuration.Microseconds(),
		MinTickUS:     s.MinTickDuration.Microseconds(),
		MaxTickUS:     s.MaxTickDuration.Microseconds(),
		P95TickUS:     s.P95TickDuration.Microseconds(),
		TicksPerSec:   s.TicksPerSecond,
		FPS:           s.FPS,
		CameraPct:     s.PhasePct[PhaseCamera],
		LevelsPct:     s.PhasePct[PhaseLevels],
		PresentPct:    s.PhasePct[PhasePresent],
		RegeneratePct: s.PhasePct[PhaseRegenerate],
	}
}
