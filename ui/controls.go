package ui

import (
	"fmt"
	"math"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/hopalong/settings"
)

// rotationDisplayScale maps rotation speed in radians per frame to slider units.
const rotationDisplayScale = 1000

// SettingsSliders returns the settings panel sliders in display order.
func SettingsSliders() []SliderDescriptor {
	return []SliderDescriptor{
		{
			ID: "speed", Label: "Speed", Min: 0, Max: 100, Format: "%.1f",
			Get: func(s settings.Settings) float32 { return float32(s.Speed) },
			Set: func(v float32) settings.Partial { return settings.Partial{Speed: settings.Float(float64(v))} },
		},
		{
			ID: "rotation", Label: "Rotation speed", Min: 0, Max: 100, Format: "%.0f", Integer: true,
			Get: func(s settings.Settings) float32 {
				return float32(math.Floor(math.Abs(s.RotationSpeed * rotationDisplayScale)))
			},
			Set: func(v float32) settings.Partial {
				return settings.Partial{RotationSpeed: settings.Float(float64(v) / rotationDisplayScale)}
			},
		},
		{
			ID: "fov", Label: "Field of view", Min: 20, Max: 120, Format: "%.0f", Integer: true,
			Get: func(s settings.Settings) float32 { return float32(s.CameraFOV) },
			Set: func(v float32) settings.Partial { return settings.Partial{CameraFOV: settings.Float(float64(v))} },
		},
		{
			ID: "points", Label: "Points per subset", Min: 1000, Max: 64000, Format: "%.0f", Integer: true,
			Get: func(s settings.Settings) float32 { return float32(s.PointsPerSubset) },
			Set: func(v float32) settings.Partial { return settings.Partial{PointsPerSubset: settings.Int(int(v))} },
		},
		{
			ID: "subsets", Label: "Subsets", Min: 1, Max: 16, Format: "%.0f", Integer: true,
			Get: func(s settings.Settings) float32 { return float32(s.SubsetCount) },
			Set: func(v float32) settings.Partial { return settings.Partial{SubsetCount: settings.Int(int(v))} },
		},
		{
			ID: "levels", Label: "Levels", Min: 1, Max: 16, Format: "%.0f", Integer: true,
			Get: func(s settings.Settings) float32 { return float32(s.LevelCount) },
			Set: func(v float32) settings.Partial { return settings.Partial{LevelCount: settings.Int(int(v))} },
		},
	}
}

// sliderChange returns the partial for a slider moved from old to v, or false
// when the move does not change the applied value.
func sliderChange(d SliderDescriptor, old, v float32, clockwise bool) (settings.Partial, bool) {
	if d.Integer {
		v = float32(math.Round(float64(v)))
	}
	if v == old {
		return settings.Partial{}, false
	}
	return settings.WithRotationDirection(d.Set(v), clockwise), true
}

// SettingsPanel renders the settings menu with raygui sliders.
type SettingsPanel struct {
	renderer  *Renderer
	sliders   []SliderDescriptor
	clockwise bool
	x, y      int32
	width     int32
}

// NewSettingsPanel creates a new settings panel.
func NewSettingsPanel(x, y, width int32) *SettingsPanel {
	return &SettingsPanel{
		renderer: NewRenderer(),
		sliders:  SettingsSliders(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// Sync picks up the rotation direction from published settings.
func (p *SettingsPanel) Sync(s settings.Settings) {
	if s.RotationSpeed != 0 {
		p.clockwise = s.RotationSpeed < 0
	}
}

// Draw renders the panel and returns the changes the user made this frame.
func (p *SettingsPanel) Draw(s settings.Settings, pending bool) []settings.Partial {
	r := p.renderer
	pad := r.Theme.Padding
	rowH := int32(38)
	height := pad*3 + r.Theme.LineHeight + rowH*int32(len(p.sliders)) + 3*24
	r.DrawPanel(p.x, p.y, p.width, height)

	var changes []settings.Partial
	x := float32(p.x + pad)
	y := r.DrawSectionHeader(p.x+pad, p.y+pad, "Settings")
	w := float32(p.width - pad*2 - 50)

	for _, d := range p.sliders {
		old := d.Get(s)
		rl.DrawText(d.Label, int32(x), y, r.Theme.FontSize, r.Theme.LabelColor)
		v := gui.SliderBar(rl.Rectangle{X: x, Y: float32(y + 16), Width: w, Height: 16}, "", "", old, d.Min, d.Max)
		rl.DrawText(fmt.Sprintf(d.Format, old), int32(x+w+8), y+16, r.Theme.FontSize, r.Theme.ValueColor)
		if change, ok := sliderChange(d, old, v, p.clockwise); ok {
			changes = append(changes, change)
		}
		y += rowH
	}

	box := func(label string, checked bool) bool {
		v := gui.CheckBox(rl.Rectangle{X: x, Y: float32(y), Width: 16, Height: 16}, label, checked)
		y += 24
		return v
	}

	if cw := box("Clockwise rotation", p.clockwise); cw != p.clockwise {
		p.clockwise = cw
		changes = append(changes, settings.WithRotationDirection(settings.Partial{RotationSpeed: settings.Float(s.RotationSpeed)}, cw))
	}
	if v := box("Mouse locked", s.MouseLocked); v != s.MouseLocked {
		changes = append(changes, settings.Partial{MouseLocked: settings.Bool(v)})
	}
	if v := box("Soundtrack", s.Playing); v != s.Playing {
		changes = append(changes, settings.Partial{Playing: settings.Bool(v)})
	}

	if pending {
		rl.DrawText("rebuilding...", int32(x), y, r.Theme.FontSize, r.Theme.WarnColor)
	}
	return changes
}

// ToolbarAction is a toolbar button press.
type ToolbarAction int

const (
	ToolbarNone ToolbarAction = iota
	ToolbarMenu
	ToolbarFullscreen
	ToolbarMouseLock
	ToolbarPlay
	ToolbarCenter
	ToolbarStats
)

// Toolbar renders the row of buttons along the top edge.
type Toolbar struct {
	x, y int32
}

// NewToolbar creates a toolbar at a screen position.
func NewToolbar(x, y int32) *Toolbar {
	return &Toolbar{x: x, y: y}
}

// Draw renders the toolbar and returns the button pressed this frame.
func (t *Toolbar) Draw(s settings.Settings, menuOpen, statsOpen bool) ToolbarAction {
	buttons := []struct {
		label  string
		action ToolbarAction
	}{
		{toggleText(menuOpen, "Close", "Menu"), ToolbarMenu},
		{toggleText(rl.IsWindowFullscreen(), "Window", "Full"), ToolbarFullscreen},
		{toggleText(s.MouseLocked, "Unlock", "Lock"), ToolbarMouseLock},
		{toggleText(s.Playing, "Pause", "Play"), ToolbarPlay},
		{"Center", ToolbarCenter},
		{toggleText(statsOpen, "No stats", "Stats"), ToolbarStats},
	}

	pressed := ToolbarNone
	x := float32(t.x)
	for _, b := range buttons {
		if gui.Button(rl.Rectangle{X: x, Y: float32(t.y), Width: 70, Height: 26}, b.label) {
			pressed = b.action
		}
		x += 76
	}
	return pressed
}

func toggleText(on bool, onText, offText string) string {
	if on {
		return onText
	}
	return offText
}
