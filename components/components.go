// Package components defines ECS components for particle sets.
package components

import (
	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/hopalong/surface"
)

// Placement fixes a set's slot in the field. Never changes after creation.
type Placement struct {
	Level  int
	Subset int
}

// Key returns the surface key of the set.
func (p Placement) Key() surface.Key {
	return surface.Key{Level: p.Level, Subset: p.Subset}
}

// Motion is the scrolling state of a set.
type Motion struct {
	Depth    float64 // z position; wraps to the back once past the camera
	Rotation float64 // radians about the z axis
}

// Tint is the set's color.
type Tint struct {
	Hue   float64 // [0, 1)
	Color colorful.Color
}

// Refresh marks a set whose geometry should be replaced at its next wrap.
type Refresh struct {
	Dirty bool
}

// Buffer holds the surface-owned point buffer of a set.
type Buffer struct {
	Handle surface.Buffer
}
