package game

import (
	"fmt"
	"strings"
)

// Action is a discrete user command, bound to a key or sent remotely.
type Action uint8

const (
	ActionNone Action = iota
	ActionSpeedUp
	ActionSpeedDown
	ActionRotateFaster
	ActionRotateSlower
	ActionResetDefaults
	ActionToggleMouseLock
	ActionRecenter
	ActionTogglePlay
)

var actionNames = map[Action]string{
	ActionNone:            "none",
	ActionSpeedUp:         "speed-up",
	ActionSpeedDown:       "speed-down",
	ActionRotateFaster:    "rotate-faster",
	ActionRotateSlower:    "rotate-slower",
	ActionResetDefaults:   "reset",
	ActionToggleMouseLock: "toggle-mouse-lock",
	ActionRecenter:        "recenter",
	ActionTogglePlay:      "toggle-play",
}

// String implements fmt.Stringer.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", a)
}

// ParseAction returns the action with the given name.
func ParseAction(name string) (Action, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for a, n := range actionNames {
		if n == name && a != ActionNone {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("unknown action %q", name)
}

// HandleAction applies an action using the configured speed and rotation steps.
func (a *App) HandleAction(act Action) error {
	m := a.cfg.Motion
	switch act {
	case ActionSpeedUp:
		return a.ChangeSpeed(m.SpeedStep)
	case ActionSpeedDown:
		return a.ChangeSpeed(-m.SpeedStep)
	case ActionRotateFaster:
		return a.ChangeRotationSpeed(m.RotationStep)
	case ActionRotateSlower:
		return a.ChangeRotationSpeed(-m.RotationStep)
	case ActionResetDefaults:
		return a.ResetDefaults()
	case ActionToggleMouseLock:
		return a.SetMouseLock(nil)
	case ActionRecenter:
		return a.RecenterCamera()
	case ActionTogglePlay:
		return a.TogglePlaying()
	case ActionNone:
		return nil
	default:
		return fmt.Errorf("unhandled action %v", act)
	}
}
