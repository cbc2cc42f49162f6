package ui

import (
	"testing"
	"time"

	"github.com/pthm-cable/hopalong/game"
	"github.com/pthm-cable/hopalong/loop"
	"github.com/pthm-cable/hopalong/settings"
)

func sliderByID(t *testing.T, id string) SliderDescriptor {
	t.Helper()
	for _, d := range SettingsSliders() {
		if d.ID == id {
			return d
		}
	}
	t.Fatalf("no slider %q", id)
	return SliderDescriptor{}
}

func TestRotationSliderScaling(t *testing.T) {
	d := sliderByID(t, "rotation")

	if got := d.Get(settings.Settings{RotationSpeed: -0.0051}); got != 5 {
		t.Errorf("expected displayed rotation 5, got %v", got)
	}

	p, ok := sliderChange(d, 5, 12.4, true)
	if !ok {
		t.Fatal("expected a change")
	}
	if p.RotationSpeed == nil || *p.RotationSpeed != -0.012 {
		t.Errorf("expected clockwise -0.012, got %v", p.RotationSpeed)
	}

	p, _ = sliderChange(d, 5, 12.4, false)
	if *p.RotationSpeed != 0.012 {
		t.Errorf("expected counter-clockwise 0.012, got %v", *p.RotationSpeed)
	}
}

func TestIntegerSliderIgnoresSubStepMoves(t *testing.T) {
	d := sliderByID(t, "subsets")

	if _, ok := sliderChange(d, 7, 7.3, false); ok {
		t.Error("expected no change for a move that rounds to the same value")
	}
	p, ok := sliderChange(d, 7, 7.6, false)
	if !ok || p.SubsetCount == nil || *p.SubsetCount != 8 {
		t.Errorf("expected subsets 8, got %+v", p)
	}
	if p.RotationSpeed != nil {
		t.Error("expected structural slider to leave rotation untouched")
	}
}

func TestSlidersRoundTrip(t *testing.T) {
	s := settings.Settings{Speed: 8, CameraFOV: 60, PointsPerSubset: 32000, SubsetCount: 7, LevelCount: 7}
	for _, d := range SettingsSliders() {
		if d.ID == "rotation" {
			continue
		}
		got := s.Merge(d.Set(d.Get(s)))
		if got != s {
			t.Errorf("slider %s: round trip changed settings: %+v", d.ID, got)
		}
	}
}

func TestOverlayRegistry(t *testing.T) {
	r := NewOverlayRegistry()

	if !r.Visible(OverlayToolbar) || !r.Visible(OverlayStats) || r.Visible(OverlayMenu) {
		t.Fatal("unexpected initial overlay state")
	}

	r.Toggle(OverlayHelp)
	if !r.Toggle(OverlayMenu) || r.Visible(OverlayHelp) {
		t.Error("expected menu to close help")
	}

	if !r.ToggleHidden() || r.Visible(OverlayMenu) || r.Visible(OverlayToolbar) {
		t.Error("expected hidden chrome")
	}
	r.ToggleHidden()
	if !r.Visible(OverlayMenu) {
		t.Error("expected menu restored after unhide")
	}

	if _, _, ok := r.HandleKeyPress(0); ok {
		t.Error("expected key 0 to match nothing")
	}
}

func TestToolbarHidesWhenPointerRests(t *testing.T) {
	clock := loop.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	reg := NewOverlayRegistry()
	idle := NewIdleTimer(clock, toolbarIdle)

	if !toolbarShown(reg, idle) {
		t.Fatal("expected toolbar shown at start")
	}

	clock.Advance(1900 * time.Millisecond)
	if !toolbarShown(reg, idle) {
		t.Error("expected toolbar shown before the idle timeout")
	}

	clock.Advance(100 * time.Millisecond)
	if toolbarShown(reg, idle) {
		t.Error("expected toolbar hidden after 2s without movement")
	}

	idle.Touch()
	if !toolbarShown(reg, idle) {
		t.Error("expected movement to bring the toolbar back")
	}

	// A disabled toolbar stays hidden regardless of movement
	reg.SetEnabled(OverlayToolbar, false)
	idle.Touch()
	if toolbarShown(reg, idle) {
		t.Error("expected disabled toolbar to stay hidden")
	}
}

func TestBindingsCoverActions(t *testing.T) {
	seen := map[game.Action]bool{}
	for _, b := range DefaultBindings() {
		if seen[b.Action] {
			t.Errorf("action %v bound twice", b.Action)
		}
		seen[b.Action] = true
		if a, ok := ActionForKey(DefaultBindings(), b.Key); !ok || a != b.Action {
			t.Errorf("key %d: got %v", b.Key, a)
		}
	}
	for _, a := range []game.Action{
		game.ActionSpeedUp, game.ActionSpeedDown, game.ActionRotateFaster, game.ActionRotateSlower,
		game.ActionResetDefaults, game.ActionToggleMouseLock, game.ActionRecenter, game.ActionTogglePlay,
	} {
		if !seen[a] {
			t.Errorf("action %v has no key", a)
		}
	}
}
