// Package camera provides the pointer-tracking camera controller.
package camera

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Options configures a Controller.
type Options struct {
	Bound  float64 // Max |x|, |y|
	Easing float64 // Fraction of the remaining distance covered per Update
	Z      float64 // Fixed camera depth
	FOV    float64 // Vertical field of view in degrees
	Near   float64
	Far    float64
	Width  int // Viewport size in pixels
	Height int
}

// Controller eases a camera toward a pointer-derived target within bounds.
type Controller struct {
	// Position
	X, Y, Z float64

	// Target offset, relative to the baseline
	mouseX, mouseY float64

	// Pointer offset that counts as zero after a recenter
	baseX, baseY float64

	// Last raw pointer offset from the viewport centre
	rawX, rawY float64

	halfW, halfH float64
	bound        float64
	easing       float64
	locked       bool

	fov, aspect, near, far float64
	proj                   *mat.Dense
	view                   *mat.Dense
	version                uint64
}

// New creates a controller at (0, 0, opts.Z) with tracking enabled.
func New(opts Options) *Controller {
	c := &Controller{
		Z:      opts.Z,
		bound:  opts.Bound,
		easing: opts.Easing,
		fov:    opts.FOV,
		near:   opts.Near,
		far:    opts.Far,
		aspect: 1,
		proj:   mat.NewDense(4, 4, nil),
		view:   mat.NewDense(4, 4, nil),
	}
	c.Resize(opts.Width, opts.Height)
	return c
}

// PointerMoved records a pointer position in window pixels.
// The tracking target is left alone while the mouse is locked.
func (c *Controller) PointerMoved(px, py float64) {
	c.rawX = px - c.halfW
	c.rawY = py - c.halfH
	if c.locked {
		return
	}
	c.mouseX = c.rawX - c.baseX
	c.mouseY = c.rawY - c.baseY
}

// Update advances the camera one frame toward its target.
func (c *Controller) Update() {
	if c.X >= -c.bound && c.X <= c.bound {
		c.X += (c.mouseX - c.X) * c.easing
		c.X = clamp(c.X, -c.bound, c.bound)
	}
	if c.Y >= -c.bound && c.Y <= c.bound {
		c.Y += (-c.mouseY - c.Y) * c.easing
		c.Y = clamp(c.Y, -c.bound, c.bound)
	}
}

// Recenter zeroes the position, makes the current pointer position the new
// zero reference and engages the mouse lock.
func (c *Controller) Recenter() {
	c.X, c.Y = 0, 0
	c.baseX, c.baseY = c.rawX, c.rawY
	c.mouseX, c.mouseY = 0, 0
	c.locked = true
}

// SetMouseLock engages or releases pointer tracking.
func (c *Controller) SetMouseLock(locked bool) {
	c.locked = locked
}

// Locked reports whether pointer tracking is disabled.
func (c *Controller) Locked() bool {
	return c.locked
}

// Target returns the current tracking target.
func (c *Controller) Target() (x, y float64) {
	return c.mouseX, c.mouseY
}

// FOV returns the vertical field of view in degrees.
func (c *Controller) FOV() float64 {
	return c.fov
}

// SetFOV changes the field of view and recomputes the projection.
func (c *Controller) SetFOV(deg float64) {
	if deg == c.fov {
		return
	}
	c.fov = deg
	c.updateProjection()
}

// Resize sets the viewport size and recomputes the projection.
func (c *Controller) Resize(width, height int) {
	c.halfW = float64(width) / 2
	c.halfH = float64(height) / 2
	if height > 0 {
		c.aspect = float64(width) / float64(height)
	}
	c.updateProjection()
}

// Projection returns the current perspective matrix.
func (c *Controller) Projection() mat.Matrix {
	return c.proj
}

// Version increments every time the projection changes.
func (c *Controller) Version() uint64 {
	return c.version
}

// updateProjection rebuilds the OpenGL-style perspective matrix.
func (c *Controller) updateProjection() {
	f := 1 / math.Tan(c.fov*math.Pi/360)
	nf := c.near - c.far

	c.proj.Zero()
	c.proj.Set(0, 0, f/c.aspect)
	c.proj.Set(1, 1, f)
	c.proj.Set(2, 2, (c.far+c.near)/nf)
	c.proj.Set(2, 3, 2*c.far*c.near/nf)
	c.proj.Set(3, 2, -1)
	c.version++
}

// Pose returns a snapshot for surfaces.
func (c *Controller) Pose() Pose {
	p := Pose{
		X: c.X, Y: c.Y, Z: c.Z,
		FOV:     c.fov,
		Aspect:  c.aspect,
		Near:    c.near,
		Far:     c.far,
		Locked:  c.locked,
		Version: c.version,
	}
	copy(p.Projection[:], c.proj.RawMatrix().Data)
	copy(p.View[:], c.View().RawMatrix().Data)
	return p
}

// View returns the look-at matrix from the camera position toward the origin
// with +y up. The matrix is reused across calls.
func (c *Controller) View() *mat.Dense {
	eye := r3.Vec{X: c.X, Y: c.Y, Z: c.Z}
	if r3.Norm(eye) == 0 {
		// Degenerate: keep looking down -z
		eye.Z = 1
		c.fillView(r3.Vec{}, eye)
		return c.view
	}
	c.fillView(eye, eye)
	return c.view
}

// fillView writes the view matrix for a camera at eye whose backward axis
// (from the origin toward the camera) is back.
func (c *Controller) fillView(eye, back r3.Vec) {
	f := r3.Scale(-1, r3.Unit(back))
	up := r3.Vec{Y: 1}
	side := r3.Cross(f, up)
	if r3.Norm(side) == 0 {
		// Looking straight along y; pick any perpendicular
		side = r3.Vec{X: 1}
	}
	s := r3.Unit(side)
	u := r3.Cross(s, f)

	v := c.view
	v.SetRow(0, []float64{s.X, s.Y, s.Z, -r3.Dot(s, eye)})
	v.SetRow(1, []float64{u.X, u.Y, u.Z, -r3.Dot(u, eye)})
	v.SetRow(2, []float64{-f.X, -f.Y, -f.Z, r3.Dot(f, eye)})
	v.SetRow(3, []float64{0, 0, 0, 1})
}

// Pose is a value copy of the camera state for one frame.
type Pose struct {
	X, Y, Z float64
	FOV     float64
	Aspect  float64
	Near    float64
	Far     float64
	Locked  bool
	Version uint64

	// Row-major look-at and perspective matrices
	View       [16]float64
	Projection [16]float64
}

// Project maps a world point to normalized device coordinates.
// ok is false when the point is behind the camera or outside the clip volume.
func (p *Pose) Project(x, y, z float64) (nx, ny float64, ok bool) {
	v := &p.View
	vx := v[0]*x + v[1]*y + v[2]*z + v[3]
	vy := v[4]*x + v[5]*y + v[6]*z + v[7]
	vz := v[8]*x + v[9]*y + v[10]*z + v[11]
	m := &p.Projection

	cx := m[0]*vx + m[1]*vy + m[2]*vz + m[3]
	cy := m[4]*vx + m[5]*vy + m[6]*vz + m[7]
	cz := m[8]*vx + m[9]*vy + m[10]*vz + m[11]
	w := m[12]*vx + m[13]*vy + m[14]*vz + m[15]
	if w <= 0 {
		return 0, 0, false
	}

	nx, ny = cx/w, cy/w
	nz := cz / w
	if nz < -1 || nz > 1 {
		return nx, ny, false
	}
	return nx, ny, true
}

// clamp restricts a value to a range.
func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
