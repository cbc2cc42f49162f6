package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// OverlayID uniquely identifies a piece of chrome.
type OverlayID string

// Standard overlay IDs.
const (
	OverlayToolbar OverlayID = "toolbar"
	OverlayMenu    OverlayID = "menu"
	OverlayStats   OverlayID = "stats"
	OverlayHelp    OverlayID = "help"
)

// OverlayDescriptor defines an overlay that can be toggled.
type OverlayDescriptor struct {
	ID        OverlayID
	Name      string
	Key       int32  // Keyboard key to toggle (0 = no key)
	KeyLabel  string // Key label for display
	Enabled   bool   // Initial state
	Exclusive []OverlayID
}

// OverlayRegistry manages overlay state and metadata. Hide suppresses every
// overlay without forgetting which ones were enabled.
type OverlayRegistry struct {
	descriptors []OverlayDescriptor
	byID        map[OverlayID]OverlayDescriptor
	enabled     map[OverlayID]bool
	hidden      bool
}

// NewOverlayRegistry creates a registry with default overlays.
func NewOverlayRegistry() *OverlayRegistry {
	reg := &OverlayRegistry{
		byID:    make(map[OverlayID]OverlayDescriptor),
		enabled: make(map[OverlayID]bool),
	}
	reg.registerDefaults()
	return reg
}

func (r *OverlayRegistry) registerDefaults() {
	r.Register(OverlayDescriptor{ID: OverlayToolbar, Name: "Toolbar", Enabled: true})
	r.Register(OverlayDescriptor{ID: OverlayMenu, Name: "Settings", Key: rl.KeyTab, KeyLabel: "Tab", Exclusive: []OverlayID{OverlayHelp}})
	r.Register(OverlayDescriptor{ID: OverlayStats, Name: "Stats", Key: rl.KeyF3, KeyLabel: "F3", Enabled: true})
	r.Register(OverlayDescriptor{ID: OverlayHelp, Name: "Help", Key: rl.KeyF1, KeyLabel: "F1", Exclusive: []OverlayID{OverlayMenu}})
}

// Register adds an overlay to the registry.
func (r *OverlayRegistry) Register(desc OverlayDescriptor) {
	r.descriptors = append(r.descriptors, desc)
	r.byID[desc.ID] = desc
	r.enabled[desc.ID] = desc.Enabled
}

// Toggle switches an overlay on/off and handles exclusivity.
func (r *OverlayRegistry) Toggle(id OverlayID) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	r.SetEnabled(id, !r.enabled[id])
	return r.enabled[id]
}

// SetEnabled explicitly sets an overlay's state.
func (r *OverlayRegistry) SetEnabled(id OverlayID, enabled bool) {
	desc, ok := r.byID[id]
	if !ok {
		return
	}
	r.enabled[id] = enabled
	if enabled {
		for _, excl := range desc.Exclusive {
			r.enabled[excl] = false
		}
	}
}

// Visible reports whether an overlay should be drawn.
func (r *OverlayRegistry) Visible(id OverlayID) bool {
	return !r.hidden && r.enabled[id]
}

// ToggleHidden hides or restores all chrome and returns true when hidden.
func (r *OverlayRegistry) ToggleHidden() bool {
	r.hidden = !r.hidden
	return r.hidden
}

// Hidden reports whether all chrome is hidden.
func (r *OverlayRegistry) Hidden() bool {
	return r.hidden
}

// All returns all registered overlays in registration order.
func (r *OverlayRegistry) All() []OverlayDescriptor {
	return r.descriptors
}

// HandleKeyPress checks if a key corresponds to an overlay toggle.
// Returns the overlay ID and new state if a toggle occurred.
func (r *OverlayRegistry) HandleKeyPress(key int32) (OverlayID, bool, bool) {
	for _, desc := range r.descriptors {
		if desc.Key != 0 && desc.Key == key {
			return desc.ID, r.Toggle(desc.ID), true
		}
	}
	return "", false, false
}
