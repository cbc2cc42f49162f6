// Package surface defines the contract between the simulation and whatever
// draws it, plus headless and recording implementations.
package surface

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/hopalong/camera"
)

// Key identifies the particle set a buffer belongs to.
type Key struct {
	Level  int
	Subset int
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("L%d/S%d", k.Level, k.Subset)
}

// Buffer is a point buffer plus material owned by the surface.
type Buffer interface {
	// Upload replaces the buffer contents with xyz triples.
	Upload(vertices []float32)
	// SetColor sets the material color.
	SetColor(c colorful.Color)
	// Release frees the resources behind the buffer.
	Release() error
}

// Set is one particle set as presented for a frame.
type Set struct {
	Key      Key
	Depth    float64
	Rotation float64
	Buffer   Buffer
}

// Frame is everything a surface needs to draw one frame.
// Sets is only valid for the duration of Present.
type Frame struct {
	Index  uint64
	Camera camera.Pose
	Sets   []Set
}

// Surface allocates buffers and presents frames.
type Surface interface {
	NewBuffer(key Key, capacity int) (Buffer, error)
	Present(f Frame) error
}
