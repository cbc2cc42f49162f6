package renderer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// spriteSize is the edge of the generated fallback sprite in pixels.
const spriteSize = 64

type spriteData struct {
	path string
	data []byte
}

// sprite owns the point texture. File reads happen on a goroutine; the
// texture is created on the render thread.
type sprite struct {
	tex    rl.Texture2D
	loaded bool

	pending chan spriteData
	errs    chan error
}

func newSprite() *sprite {
	return &sprite{
		pending: make(chan spriteData, 1),
		errs:    make(chan error, 4),
	}
}

// load reads path in the background. An empty path uses a generated radial glow.
func (s *sprite) load(path string) {
	if path == "" {
		select {
		case s.pending <- spriteData{}:
		default:
		}
		return
	}
	go func() {
		data, err := os.ReadFile(path)
		if err != nil {
			s.report(fmt.Errorf("loading sprite: %w", err))
			return
		}
		s.pending <- spriteData{path: path, data: data}
	}()
}

// poll creates the texture once the read has finished.
func (s *sprite) poll() {
	select {
	case d := <-s.pending:
		s.create(d)
	default:
	}
}

func (s *sprite) create(d spriteData) {
	var img *rl.Image
	if d.data == nil {
		img = rl.GenImageGradientRadial(spriteSize, spriteSize, 0, rl.White, rl.Blank)
	} else {
		ext := strings.ToLower(filepath.Ext(d.path))
		img = rl.LoadImageFromMemory(ext, d.data, int32(len(d.data)))
	}
	if img == nil || img.Width == 0 || img.Height == 0 {
		s.report(fmt.Errorf("decoding sprite %q: unsupported or corrupt image", d.path))
		return
	}
	defer rl.UnloadImage(img)

	s.unload()
	s.tex = rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(s.tex, rl.FilterBilinear)
	s.loaded = true
}

// textureID returns the sprite texture, or 0 for raylib's default white texture.
func (s *sprite) textureID() uint32 {
	if !s.loaded {
		return 0
	}
	return s.tex.ID
}

func (s *sprite) unload() {
	if s.loaded {
		rl.UnloadTexture(s.tex)
		s.loaded = false
	}
}

// report delivers err without blocking the caller.
func (s *sprite) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}
