package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/hopalong/game"
	"github.com/pthm-cable/hopalong/settings"
	"github.com/pthm-cable/hopalong/systems"
	"github.com/pthm-cable/hopalong/telemetry"
)

// StatsPanelData holds everything the stats overlay shows.
type StatsPanelData struct {
	FPS      int32
	Perf     telemetry.PerfStats
	App      game.Stats
	Settings settings.Settings
}

// StatsPanel renders frame timing and field counters.
type StatsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewStatsPanel creates a new stats panel.
func NewStatsPanel(x, y, width int32) *StatsPanel {
	return &StatsPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition updates the panel position.
func (p *StatsPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the stats panel.
func (p *StatsPanel) Draw(data StatsPanelData) {
	r := p.renderer
	pad := r.Theme.Padding
	phases := systems.Phases()
	height := pad*2 + r.Theme.LineHeight*int32(9) + (r.Theme.LineHeight+2)*int32(len(phases)) + 8
	r.DrawPanel(p.x, p.y, p.width, height)

	x := p.x + pad
	y := r.DrawSectionHeader(x, p.y+pad, "Stats")

	y = r.DrawLabelValue(x, y, "FPS", fmt.Sprintf("%d", data.FPS))
	y = r.DrawLabelValue(x, y, "Step", data.Perf.AvgTickDuration.Round(time.Microsecond).String())

	// Frame phases first, then the periodic regeneration
	for _, info := range systems.PhasesOf(systems.TaskFrame) {
		y = r.DrawBar(x, y, info.Name, float32(data.Perf.PhasePct[info.ID]/100), p.width-pad*2, r.Theme.BarFill)
	}
	for _, info := range systems.PhasesOf(systems.TaskRegenerate) {
		y = r.DrawBar(x, y, info.Name, float32(data.Perf.PhasePct[info.ID]/100), p.width-pad*2, r.Theme.WarnColor)
	}
	y += 4

	s := data.Settings
	y = r.DrawLabelValue(x, y, "Field", fmt.Sprintf("%d x %d x %d", s.LevelCount, s.SubsetCount, s.PointsPerSubset))
	y = r.DrawLabelValue(x, y, "Speed", fmt.Sprintf("%.1f  rot %+.3f", s.Speed, s.RotationSpeed))
	y = r.DrawLabelValue(x, y, "Instance", fmt.Sprintf("#%d  %d sets", data.App.Instance, data.App.Sets))
	y = r.DrawLabelValue(x, y, "Orbits", fmt.Sprintf("%d  (%d degenerate)", data.App.Regenerations, data.App.DegenerateOrbits))
	y = r.DrawLabelValue(x, y, "Rebuilds", fmt.Sprintf("%d  (%d failed)", data.App.Rebuilds, data.App.FailedRebuilds))

	leakColor := r.Theme.ValueColor
	if data.App.LeakedBuffers > 0 {
		leakColor = r.Theme.WarnColor
	}
	rl.DrawText("Leaked:", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawText(fmt.Sprintf("%d buffers", data.App.LeakedBuffers), x+r.Theme.LabelWidth, y, r.Theme.FontSize, leakColor)
}

// HelpPanel renders the key binding legend.
type HelpPanel struct {
	renderer *Renderer
}

// NewHelpPanel creates a help panel.
func NewHelpPanel() *HelpPanel {
	return &HelpPanel{renderer: NewRenderer()}
}

// Draw renders the legend centred on screen.
func (h *HelpPanel) Draw(bindings []KeyBinding, overlays []OverlayDescriptor, screenW, screenH int32) {
	r := h.renderer
	lines := make([]string, 0, len(bindings)+len(overlays)+1)
	for _, b := range bindings {
		lines = append(lines, fmt.Sprintf("%-8s %s", b.Label, b.Description))
	}
	for _, o := range overlays {
		if o.KeyLabel != "" {
			lines = append(lines, fmt.Sprintf("%-8s toggle %s", o.KeyLabel, o.Name))
		}
	}
	lines = append(lines, fmt.Sprintf("%-8s hide everything", "H"))

	width := int32(300)
	height := r.Theme.Padding*2 + r.Theme.LineHeight*int32(len(lines)+1)
	x := (screenW - width) / 2
	y := (screenH - height) / 2
	r.DrawPanel(x, y, width, height)

	ty := r.DrawSectionHeader(x+r.Theme.Padding, y+r.Theme.Padding, "Keys")
	for _, line := range lines {
		rl.DrawText(line, x+r.Theme.Padding, ty, r.Theme.FontSize, r.Theme.LabelColor)
		ty += r.Theme.LineHeight
	}
}
