// Package termview draws the particle field as character density in a terminal.
package termview

import (
	"errors"
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/hopalong/surface"
)

// ramp orders glyphs by apparent density.
const ramp = " .:-=+*#%@"

var errDoubleRelease = errors.New("termview: buffer released twice")

// Surface implements surface.Surface on a tcell screen.
type Surface struct {
	screen tcell.Screen
	stride int
	status func() string

	width, height int
	hits          []float64
	tint          []colorful.Color
	live          int
}

// New wraps an initialised screen. Every stride-th point is projected.
func New(screen tcell.Screen, stride int) *Surface {
	if stride < 1 {
		stride = 1
	}
	return &Surface{screen: screen, stride: stride}
}

// SetStatus registers a function whose text is drawn on the bottom row.
func (s *Surface) SetStatus(fn func() string) {
	s.status = fn
}

// Live returns the number of unreleased buffers.
func (s *Surface) Live() int {
	return s.live
}

// NewBuffer implements surface.Surface.
func (s *Surface) NewBuffer(key surface.Key, capacity int) (surface.Buffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("buffer %v: capacity must be >= 1, got %d", key, capacity)
	}
	s.live++
	return &buffer{owner: s, vertices: make([]float32, 0, capacity*3)}, nil
}

// Present accumulates projected points per cell and draws the result.
func (s *Surface) Present(f surface.Frame) error {
	w, h := s.screen.Size()
	if w <= 0 || h <= 0 {
		return nil
	}
	s.resize(w, h)

	pose := &f.Camera
	for i := range f.Sets {
		set := &f.Sets[i]
		b, ok := set.Buffer.(*buffer)
		if !ok || b.released {
			continue
		}
		sin, cos := math.Sincos(set.Rotation)
		step := 3 * s.stride
		for j := 0; j+2 < len(b.vertices); j += step {
			x, y := float64(b.vertices[j]), float64(b.vertices[j+1])
			z := float64(b.vertices[j+2]) + set.Depth
			rx, ry := x*cos-y*sin, x*sin+y*cos

			nx, ny, ok := pose.Project(rx, ry, z)
			if !ok || nx < -1 || nx >= 1 || ny < -1 || ny >= 1 {
				continue
			}
			cx := int((nx + 1) / 2 * float64(w))
			cy := int((1 - ny) / 2 * float64(h))
			idx := cy*w + cx
			s.tint[idx] = s.tint[idx].BlendRgb(b.color, 1/(s.hits[idx]+1))
			s.hits[idx]++
		}
	}

	s.screen.Clear()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := s.hits[y*w+x]
			if n == 0 {
				continue
			}
			r, g, b := s.tint[y*w+x].Clamped().RGB255()
			style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(r), int32(g), int32(b)))
			s.screen.SetContent(x, y, glyph(n), nil, style)
		}
	}
	if s.status != nil {
		drawText(s.screen, 0, h-1, s.status(), tcell.StyleDefault.Reverse(true))
	}
	s.screen.Show()
	return nil
}

// resize sizes the accumulation grid to the screen and clears it.
func (s *Surface) resize(w, h int) {
	if w != s.width || h != s.height {
		s.width, s.height = w, h
		s.hits = make([]float64, w*h)
		s.tint = make([]colorful.Color, w*h)
		return
	}
	clear(s.hits)
	clear(s.tint)
}

// glyph maps a hit count to the density ramp on a log scale.
func glyph(hits float64) rune {
	i := 1 + int(math.Log2(hits))
	if i >= len(ramp) {
		i = len(ramp) - 1
	}
	return rune(ramp[i])
}

func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

type buffer struct {
	owner    *Surface
	vertices []float32
	color    colorful.Color
	released bool
}

func (b *buffer) Upload(vertices []float32) {
	b.vertices = append(b.vertices[:0], vertices...)
}

func (b *buffer) SetColor(c colorful.Color) {
	b.color = c
}

func (b *buffer) Release() error {
	if b.released {
		return errDoubleRelease
	}
	b.released = true
	b.vertices = nil
	b.owner.live--
	return nil
}
