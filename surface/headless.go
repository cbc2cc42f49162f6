package surface

import (
	"errors"

	"github.com/lucasb-eyer/go-colorful"
)

// Headless is a surface that draws nothing. It tracks live buffers so leaks
// are visible in tests and headless runs.
type Headless struct {
	live   int
	frames uint64
}

// NewHeadless creates a headless surface.
func NewHeadless() *Headless {
	return &Headless{}
}

// NewBuffer allocates a counting buffer.
func (h *Headless) NewBuffer(key Key, capacity int) (Buffer, error) {
	h.live++
	return &headlessBuffer{owner: h, key: key}, nil
}

// Present counts the frame.
func (h *Headless) Present(f Frame) error {
	h.frames++
	return nil
}

// Live returns the number of unreleased buffers.
func (h *Headless) Live() int {
	return h.live
}

// Frames returns the number of presented frames.
func (h *Headless) Frames() uint64 {
	return h.frames
}

var errDoubleRelease = errors.New("surface: buffer released twice")

type headlessBuffer struct {
	owner    *Headless
	key      Key
	points   int
	color    colorful.Color
	released bool
}

func (b *headlessBuffer) Upload(vertices []float32) {
	b.points = len(vertices) / 3
}

func (b *headlessBuffer) SetColor(c colorful.Color) {
	b.color = c
}

func (b *headlessBuffer) Release() error {
	if b.released {
		return errDoubleRelease
	}
	b.released = true
	b.owner.live--
	return nil
}
