// Package soundtrack plays the ambient drone toggled by the play/pause setting.
package soundtrack

import (
	"math"

	"github.com/gopxl/beep"
)

// chord is the drone's partials in Hz: a low open fifth with an octave.
var chord = []float64{55, 82.41, 110, 164.81}

// lfoPeriod is the length of one swell in seconds.
const lfoPeriod = 12.0

// Drone is an endless stereo pad. Each partial is slightly detuned between
// channels and the whole chord swells with a slow sine.
type Drone struct {
	rate   beep.SampleRate
	pos    int
	phases [][2]float64
}

// NewDrone creates a drone for a sample rate.
func NewDrone(rate beep.SampleRate) *Drone {
	return &Drone{rate: rate, phases: make([][2]float64, len(chord))}
}

// Stream implements beep.Streamer. It never ends.
func (d *Drone) Stream(samples [][2]float64) (n int, ok bool) {
	sr := float64(d.rate)
	norm := 1 / float64(len(chord))

	for i := range samples {
		t := float64(d.pos) / sr
		swell := 0.6 + 0.4*math.Sin(2*math.Pi*t/lfoPeriod)

		var l, r float64
		for k, f := range chord {
			p := &d.phases[k]
			l += math.Sin(2 * math.Pi * p[0])
			r += math.Sin(2 * math.Pi * p[1])
			p[0] += f / sr
			p[1] += f * 1.003 / sr
			p[0] -= math.Floor(p[0])
			p[1] -= math.Floor(p[1])
		}

		samples[i][0] = l * norm * swell
		samples[i][1] = r * norm * swell
		d.pos++
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (d *Drone) Err() error { return nil }
