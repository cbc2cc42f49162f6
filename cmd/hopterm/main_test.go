package main

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/hopalong/game"
	"github.com/pthm-cable/hopalong/telemetry"
)

func TestActionForKey(t *testing.T) {
	tests := []struct {
		key  tcell.Key
		r    rune
		want game.Action
	}{
		{tcell.KeyUp, 0, game.ActionSpeedUp},
		{tcell.KeyDown, 0, game.ActionSpeedDown},
		{tcell.KeyLeft, 0, game.ActionRotateFaster},
		{tcell.KeyRight, 0, game.ActionRotateSlower},
		{tcell.KeyRune, 'r', game.ActionResetDefaults},
		{tcell.KeyRune, 'l', game.ActionToggleMouseLock},
		{tcell.KeyRune, 'c', game.ActionRecenter},
		{tcell.KeyRune, ' ', game.ActionTogglePlay},
		{tcell.KeyRune, 'x', game.ActionNone},
		{tcell.KeyEnter, 0, game.ActionNone},
	}
	for _, tt := range tests {
		ev := tcell.NewEventKey(tt.key, tt.r, tcell.ModNone)
		if got := actionForKey(ev); got != tt.want {
			t.Errorf("actionForKey(%v, %q) = %v, want %v", tt.key, tt.r, got, tt.want)
		}
	}
}

func TestIsQuit(t *testing.T) {
	if !isQuit(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Error("Escape should quit")
	}
	if !isQuit(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Error("q should quit")
	}
	if isQuit(tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)) {
		t.Error("r should not quit")
	}
}

func TestBusiestPhase(t *testing.T) {
	p := telemetry.PerfStats{PhasePct: map[string]float64{
		telemetry.PhaseCamera:     2,
		telemetry.PhaseLevels:     30,
		telemetry.PhasePresent:    60,
		telemetry.PhaseRegenerate: 90,
	}}
	// Regeneration runs in its own task and never counts as a frame phase
	if name, pct := busiestPhase(p); name != "Present" || pct != 60 {
		t.Errorf("expected Present at 60%%, got %q at %v", name, pct)
	}
	if name, _ := busiestPhase(telemetry.PerfStats{}); name != "" {
		t.Errorf("expected no phase without samples, got %q", name)
	}
}

func TestPollEventsStopsWhenDone(t *testing.T) {
	poll := func() tcell.Event { return tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone) }
	events := make(chan tcell.Event) // never read
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		pollEvents(poll, events, done)
		close(exited)
	}()

	close(done)
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("poller still blocked after done closed")
	}
}

func TestPollEventsStopsOnNil(t *testing.T) {
	n := 0
	poll := func() tcell.Event {
		n++
		if n > 2 {
			return nil
		}
		return tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)
	}
	events := make(chan tcell.Event, 4)
	pollEvents(poll, events, make(chan struct{}))

	if len(events) != 2 {
		t.Errorf("expected 2 forwarded events, got %d", len(events))
	}
}
