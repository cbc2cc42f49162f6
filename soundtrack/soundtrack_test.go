package soundtrack

import (
	"math"
	"testing"

	"github.com/gopxl/beep"
)

func TestDroneStaysInRange(t *testing.T) {
	d := NewDrone(beep.SampleRate(8000))
	buf := make([][2]float64, 4096)

	var energy float64
	for round := 0; round < 10; round++ {
		n, ok := d.Stream(buf)
		if n != len(buf) || !ok {
			t.Fatalf("expected endless stream, got n=%d ok=%v", n, ok)
		}
		for _, s := range buf {
			for _, v := range s {
				if math.IsNaN(v) || v < -1 || v > 1 {
					t.Fatalf("sample out of range: %v", v)
				}
				energy += v * v
			}
		}
	}
	if energy == 0 {
		t.Error("expected non-silent output")
	}
	if d.Err() != nil {
		t.Error("expected no error")
	}
}

func TestDroneDeterministic(t *testing.T) {
	a := NewDrone(beep.SampleRate(8000))
	b := NewDrone(beep.SampleRate(8000))
	ba := make([][2]float64, 512)
	bb := make([][2]float64, 512)
	a.Stream(ba)
	b.Stream(bb)
	for i := range ba {
		if ba[i] != bb[i] {
			t.Fatalf("sample %d differs", i)
		}
	}
}

func TestPlayerWithoutDevice(t *testing.T) {
	p := NewPlayer(0.15)

	if p.Playing() || !p.ctrl.Paused {
		t.Fatal("expected new player to be paused")
	}
	p.SetPlaying(true)
	if !p.Playing() || p.ctrl.Paused {
		t.Error("expected play state recorded before init")
	}
	p.SetPlaying(false)
	if p.Playing() || !p.ctrl.Paused {
		t.Error("expected pause recorded before init")
	}
	p.Close()
}

func TestVolume(t *testing.T) {
	if v := newVolume(nil, 0); !v.Silent {
		t.Error("expected zero gain to be silent")
	}
	if v := newVolume(nil, 0.25); v.Volume != -2 || v.Silent {
		t.Errorf("expected volume -2, got %v", v.Volume)
	}
	if v := newVolume(nil, 4); v.Volume != 0 {
		t.Errorf("expected gain clamped to 1, got %v", v.Volume)
	}
}
