package settings

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/pthm-cable/hopalong/config"
)

func TestFromConfig(t *testing.T) {
	s := FromConfig(config.Default())

	if s.Speed != 8 || s.RotationSpeed != 0.005 || s.CameraFOV != 60 {
		t.Errorf("unexpected live defaults: %+v", s)
	}
	if s.PointsPerSubset != 32000 || s.SubsetCount != 7 || s.LevelCount != 7 {
		t.Errorf("unexpected structural defaults: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestMergeFloorsSpeed(t *testing.T) {
	s := Settings{Speed: 8}
	s = s.Merge(Partial{Speed: Float(-992)})
	if s.Speed != 0 {
		t.Errorf("expected speed floored at 0, got %v", s.Speed)
	}

	s = s.Merge(Partial{RotationSpeed: Float(-3)})
	if s.RotationSpeed != -3 {
		t.Errorf("expected unbounded rotation, got %v", s.RotationSpeed)
	}
}

func TestPartialClassification(t *testing.T) {
	p := Partial{Speed: Float(5), SubsetCount: Int(10), Playing: Bool(false)}

	live := p.Live()
	if live.Speed == nil || live.Playing == nil || live.SubsetCount != nil {
		t.Errorf("unexpected live split: %+v", live)
	}
	structural := p.Structural()
	if structural.SubsetCount == nil || structural.Speed != nil {
		t.Errorf("unexpected structural split: %+v", structural)
	}
	if !(Partial{}).IsEmpty() || p.IsEmpty() {
		t.Error("IsEmpty mismatch")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Partial
		ok   bool
	}{
		{"empty", Partial{}, true},
		{"negative speed is floored, not rejected", Partial{Speed: Float(-1)}, true},
		{"nan speed", Partial{Speed: Float(math.NaN())}, false},
		{"inf rotation", Partial{RotationSpeed: Float(math.Inf(1))}, false},
		{"zero fov", Partial{CameraFOV: Float(0)}, false},
		{"zero subsets", Partial{SubsetCount: Int(0)}, false},
		{"negative levels", Partial{LevelCount: Int(-2)}, false},
		{"one point", Partial{PointsPerSubset: Int(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestWithRotationDirection(t *testing.T) {
	p := WithRotationDirection(Partial{RotationSpeed: Float(0.005)}, true)
	if *p.RotationSpeed != -0.005 {
		t.Errorf("expected clockwise to be negative, got %v", *p.RotationSpeed)
	}
	p = WithRotationDirection(Partial{RotationSpeed: Float(-0.005)}, false)
	if *p.RotationSpeed != 0.005 {
		t.Errorf("expected counter-clockwise to be positive, got %v", *p.RotationSpeed)
	}
	if WithRotationDirection(Partial{}, true).RotationSpeed != nil {
		t.Error("expected absent rotation to stay absent")
	}
}

func TestPartialJSON(t *testing.T) {
	var p Partial
	if err := json.Unmarshal([]byte(`{"speed": 5, "isPlaying": true, "subsetCount": 10}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Speed == nil || *p.Speed != 5 || p.Playing == nil || !*p.Playing || p.SubsetCount == nil || *p.SubsetCount != 10 {
		t.Errorf("unexpected decode: %+v", p)
	}
	if p.RotationSpeed != nil || p.LevelCount != nil {
		t.Error("expected absent fields to stay nil")
	}
}
