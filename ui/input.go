package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/hopalong/game"
)

// KeyBinding maps a key to a simulation action.
type KeyBinding struct {
	Key         int32
	Label       string
	Description string
	Action      game.Action
}

// DefaultBindings returns the keyboard layout.
func DefaultBindings() []KeyBinding {
	return []KeyBinding{
		{Key: rl.KeyUp, Label: "Up", Description: "faster", Action: game.ActionSpeedUp},
		{Key: rl.KeyDown, Label: "Down", Description: "slower", Action: game.ActionSpeedDown},
		{Key: rl.KeyLeft, Label: "Left", Description: "rotate counter-clockwise", Action: game.ActionRotateFaster},
		{Key: rl.KeyRight, Label: "Right", Description: "rotate clockwise", Action: game.ActionRotateSlower},
		{Key: rl.KeyR, Label: "R", Description: "reset speed, rotation and fov", Action: game.ActionResetDefaults},
		{Key: rl.KeyL, Label: "L", Description: "lock/unlock mouse", Action: game.ActionToggleMouseLock},
		{Key: rl.KeyC, Label: "C", Description: "recenter camera", Action: game.ActionRecenter},
		{Key: rl.KeySpace, Label: "Space", Description: "play/pause soundtrack", Action: game.ActionTogglePlay},
	}
}

// ActionForKey returns the action bound to key.
func ActionForKey(bindings []KeyBinding, key int32) (game.Action, bool) {
	for _, b := range bindings {
		if b.Key == key {
			return b.Action, true
		}
	}
	return game.ActionNone, false
}

// handleKeys applies every key pressed this frame.
func (u *UI) handleKeys() {
	for _, b := range u.bindings {
		if rl.IsKeyPressed(b.Key) {
			u.act(b.Action)
		}
	}
	for _, o := range u.overlays.All() {
		if o.Key != 0 && rl.IsKeyPressed(o.Key) {
			u.overlays.HandleKeyPress(o.Key)
		}
	}
	if rl.IsKeyPressed(rl.KeyH) {
		if u.overlays.ToggleHidden() {
			rl.HideCursor()
		} else {
			rl.ShowCursor()
		}
	}
	if rl.IsKeyPressed(rl.KeyF) {
		rl.ToggleFullscreen()
	}
}

// handlePointer forwards pointer and window changes to the camera.
func (u *UI) handlePointer() {
	if rl.IsWindowResized() {
		u.app.Resize(rl.GetScreenWidth(), rl.GetScreenHeight())
	}
	if d := rl.GetMouseDelta(); d.X != 0 || d.Y != 0 {
		m := rl.GetMousePosition()
		u.app.PointerMoved(float64(m.X), float64(m.Y))
		u.idle.Touch()
	}
}
