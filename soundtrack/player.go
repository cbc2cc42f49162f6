package soundtrack

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// Player pauses and resumes the drone. Until Init succeeds it only records
// the requested state.
type Player struct {
	mu          sync.Mutex
	ctrl        *beep.Ctrl
	volume      *effects.Volume
	playing     bool
	initialized bool
}

// NewPlayer creates a paused player at a linear volume in [0, 1].
func NewPlayer(volume float64) *Player {
	ctrl := &beep.Ctrl{Streamer: NewDrone(sampleRate), Paused: true}
	return &Player{
		ctrl:   ctrl,
		volume: newVolume(ctrl, volume),
	}
}

// newVolume converts a linear gain to beep's logarithmic volume.
func newVolume(s beep.Streamer, gain float64) *effects.Volume {
	v := &effects.Volume{Streamer: s, Base: 2}
	if gain <= 0 {
		v.Silent = true
		return v
	}
	v.Volume = math.Log2(math.Min(gain, 1))
	return v
}

// Init opens the audio device and starts streaming.
func (p *Player) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	p.ctrl.Paused = !p.playing
	speaker.Play(p.volume)
	p.initialized = true
	return nil
}

// SetPlaying implements game.Player.
func (p *Player) SetPlaying(playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.playing = playing
	if !p.initialized {
		p.ctrl.Paused = !playing
		return
	}
	speaker.Lock()
	p.ctrl.Paused = !playing
	speaker.Unlock()
}

// Playing reports the requested play state.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Close stops playback.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	speaker.Clear()
	p.initialized = false
}
