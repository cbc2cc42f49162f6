// Package renderer provides the raylib drawable surface for the particle field.
package renderer

import (
	"errors"
	"fmt"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/hopalong/camera"
	"github.com/pthm-cable/hopalong/config"
	"github.com/pthm-cable/hopalong/surface"
)

var errDoubleRelease = errors.New("renderer: buffer released twice")

// Surface draws particle sets with raylib. All methods must be called on the
// thread that created the window.
type Surface struct {
	spriteSize float32
	stride     int
	fog        float64

	sprite *sprite
	cam    rl.Camera3D
	live   int

	overlay func()
}

// NewSurface creates a surface for an open raylib window.
func NewSurface(cfg config.RenderConfig) *Surface {
	stride := cfg.PointStride
	if stride < 1 {
		stride = 1
	}
	return &Surface{
		spriteSize: float32(cfg.SpriteSize),
		stride:     stride,
		fog:        cfg.FogDensity,
		sprite:     newSprite(),
		cam: rl.Camera3D{
			Up:         rl.NewVector3(0, 1, 0),
			Projection: rl.CameraPerspective,
		},
	}
}

// LoadSprite starts reading the point sprite in the background. The texture
// is created on a later Present; until then points are drawn untextured.
// Failures are delivered on Errors.
func (s *Surface) LoadSprite(path string) {
	s.sprite.load(path)
}

// Errors delivers asynchronous resource failures.
func (s *Surface) Errors() <-chan error {
	return s.sprite.errs
}

// SetOverlay registers fn to draw 2D UI after the field, inside the frame.
func (s *Surface) SetOverlay(fn func()) {
	s.overlay = fn
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
	return &pointBuffer{
		owner:    s,
		key:      key,
		vertices: make([]float32, 0, capacity*3),
		color:    rl.White,
	}, nil
}

// Present implements surface.Surface.
func (s *Surface) Present(f surface.Frame) error {
	s.sprite.poll()

	pose := &f.Camera
	s.cam.Position = rl.NewVector3(float32(pose.X), float32(pose.Y), float32(pose.Z))
	// Always aim at the scene origin; raylib builds the matching look-at
	s.cam.Target = rl.NewVector3(0, 0, 0)
	s.cam.Fovy = float32(pose.FOV)

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	rl.BeginMode3D(s.cam)
	// The camera's own matrix carries the configured far plane
	rl.SetMatrixProjection(projectionMatrix(pose))
	rl.BeginBlendMode(rl.BlendAdditive)

	for i := range f.Sets {
		set := &f.Sets[i]
		b, ok := set.Buffer.(*pointBuffer)
		if !ok || b.released {
			continue
		}
		s.drawSet(b, set.Depth, set.Rotation, fogFactor(s.fog, pose.Z-set.Depth))
	}

	rl.EndBlendMode()
	rl.EndMode3D()

	if s.overlay != nil {
		s.overlay()
	}
	rl.EndDrawing()
	return nil
}

// drawSet emits one camera-facing quad per drawn point.
func (s *Surface) drawSet(b *pointBuffer, depth, rotation, fog float64) {
	if fog <= 0 {
		return
	}
	c := b.color
	r := uint8(float64(c.R) * fog)
	g := uint8(float64(c.G) * fog)
	bl := uint8(float64(c.B) * fog)
	h := s.spriteSize / 2

	rl.PushMatrix()
	rl.Translatef(0, 0, float32(depth))
	rl.Rotatef(float32(rotation*180/math.Pi), 0, 0, 1)

	rl.SetTexture(s.sprite.textureID())
	rl.Begin(rl.Quads)
	rl.Color4ub(r, g, bl, 255)
	step := 3 * s.stride
	for i := 0; i+2 < len(b.vertices); i += step {
		x, y, z := b.vertices[i], b.vertices[i+1], b.vertices[i+2]
		rl.TexCoord2f(0, 0)
		rl.Vertex3f(x-h, y+h, z)
		rl.TexCoord2f(0, 1)
		rl.Vertex3f(x-h, y-h, z)
		rl.TexCoord2f(1, 1)
		rl.Vertex3f(x+h, y-h, z)
		rl.TexCoord2f(1, 0)
		rl.Vertex3f(x+h, y+h, z)
	}
	rl.End()
	rl.SetTexture(0)

	rl.PopMatrix()
}

// Close unloads the sprite texture.
func (s *Surface) Close() {
	s.sprite.unload()
}

// fogFactor is the exponential-squared fog attenuation at a distance.
func fogFactor(density, distance float64) float64 {
	if density <= 0 {
		return 1
	}
	d := density * distance
	return math.Exp(-d * d)
}

// projectionMatrix converts the camera's row-major projection to raylib's layout.
func projectionMatrix(p *camera.Pose) rl.Matrix {
	m := &p.Projection
	return rl.Matrix{
		M0: float32(m[0]), M4: float32(m[1]), M8: float32(m[2]), M12: float32(m[3]),
		M1: float32(m[4]), M5: float32(m[5]), M9: float32(m[6]), M13: float32(m[7]),
		M2: float32(m[8]), M6: float32(m[9]), M10: float32(m[10]), M14: float32(m[11]),
		M3: float32(m[12]), M7: float32(m[13]), M11: float32(m[14]), M15: float32(m[15]),
	}
}

// pointBuffer holds one set's vertices CPU-side; quads are streamed each frame.
type pointBuffer struct {
	owner    *Surface
	key      surface.Key
	vertices []float32
	color    rl.Color
	released bool
}

func (b *pointBuffer) Upload(vertices []float32) {
	b.vertices = append(b.vertices[:0], vertices...)
}

func (b *pointBuffer) SetColor(c colorful.Color) {
	r, g, bl := c.RGB255()
	b.color = rl.Color{R: r, G: g, B: bl, A: 255}
}

func (b *pointBuffer) Release() error {
	if b.released {
		return fmt.Errorf("release %v: %w", b.key, errDoubleRelease)
	}
	b.released = true
	b.vertices = nil
	b.owner.live--
	return nil
}
