// Package settings holds the user-facing settings record and the reconciler
// that applies changes live or through a debounced rebuild.
package settings

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/hopalong/config"
)

// ErrInvalid is returned for settings that cannot be applied.
var ErrInvalid = errors.New("invalid settings")

// Settings is the canonical settings record.
type Settings struct {
	// Live: applied to the running instance
	Speed         float64 `json:"speed" yaml:"speed"`
	RotationSpeed float64 `json:"rotationSpeed" yaml:"rotation_speed"`
	CameraFOV     float64 `json:"cameraFov" yaml:"camera_fov"`
	MouseLocked   bool    `json:"mouseLocked" yaml:"mouse_locked"`
	Playing       bool    `json:"isPlaying" yaml:"is_playing"`

	// Structural: require a new instance
	PointsPerSubset int `json:"pointsPerSubset" yaml:"points_per_subset"`
	SubsetCount     int `json:"subsetCount" yaml:"subset_count"`
	LevelCount      int `json:"levelCount" yaml:"level_count"`
}

// FromConfig returns the initial settings described by cfg.
func FromConfig(cfg *config.Config) Settings {
	return Settings{
		Speed:           cfg.Motion.Speed,
		RotationSpeed:   cfg.Motion.RotationSpeed,
		CameraFOV:       cfg.Camera.FOV,
		Playing:         cfg.Audio.Enabled,
		PointsPerSubset: cfg.Field.PointsPerSubset,
		SubsetCount:     cfg.Field.Subsets,
		LevelCount:      cfg.Field.Levels,
	}
}

// SameStructure reports whether s and o share every structural field.
func (s Settings) SameStructure(o Settings) bool {
	return s.PointsPerSubset == o.PointsPerSubset &&
		s.SubsetCount == o.SubsetCount &&
		s.LevelCount == o.LevelCount
}

// withStructure returns s with the structural fields of o.
func (s Settings) withStructure(o Settings) Settings {
	s.PointsPerSubset = o.PointsPerSubset
	s.SubsetCount = o.SubsetCount
	s.LevelCount = o.LevelCount
	return s
}

// Merge overlays every field present in p. Speed is floored at 0.
func (s Settings) Merge(p Partial) Settings {
	if p.Speed != nil {
		s.Speed = math.Max(0, *p.Speed)
	}
	if p.RotationSpeed != nil {
		s.RotationSpeed = *p.RotationSpeed
	}
	if p.CameraFOV != nil {
		s.CameraFOV = *p.CameraFOV
	}
	if p.MouseLocked != nil {
		s.MouseLocked = *p.MouseLocked
	}
	if p.Playing != nil {
		s.Playing = *p.Playing
	}
	if p.PointsPerSubset != nil {
		s.PointsPerSubset = *p.PointsPerSubset
	}
	if p.SubsetCount != nil {
		s.SubsetCount = *p.SubsetCount
	}
	if p.LevelCount != nil {
		s.LevelCount = *p.LevelCount
	}
	return s
}

// Select returns a partial holding s's values for the fields present in p.
func (s Settings) Select(p Partial) Partial {
	var out Partial
	if p.Speed != nil {
		out.Speed = Float(s.Speed)
	}
	if p.RotationSpeed != nil {
		out.RotationSpeed = Float(s.RotationSpeed)
	}
	if p.CameraFOV != nil {
		out.CameraFOV = Float(s.CameraFOV)
	}
	if p.MouseLocked != nil {
		out.MouseLocked = Bool(s.MouseLocked)
	}
	if p.Playing != nil {
		out.Playing = Bool(s.Playing)
	}
	if p.PointsPerSubset != nil {
		out.PointsPerSubset = Int(s.PointsPerSubset)
	}
	if p.SubsetCount != nil {
		out.SubsetCount = Int(s.SubsetCount)
	}
	if p.LevelCount != nil {
		out.LevelCount = Int(s.LevelCount)
	}
	return out
}

// Partial is a settings change. Nil fields are absent.
type Partial struct {
	Speed         *float64 `json:"speed,omitempty"`
	RotationSpeed *float64 `json:"rotationSpeed,omitempty"`
	CameraFOV     *float64 `json:"cameraFov,omitempty"`
	MouseLocked   *bool    `json:"mouseLocked,omitempty"`
	Playing       *bool    `json:"isPlaying,omitempty"`

	PointsPerSubset *int `json:"pointsPerSubset,omitempty"`
	SubsetCount     *int `json:"subsetCount,omitempty"`
	LevelCount      *int `json:"levelCount,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Live returns only the live fields of p.
func (p Partial) Live() Partial {
	return Partial{
		Speed:         p.Speed,
		RotationSpeed: p.RotationSpeed,
		CameraFOV:     p.CameraFOV,
		MouseLocked:   p.MouseLocked,
		Playing:       p.Playing,
	}
}

// Structural returns only the structural fields of p.
func (p Partial) Structural() Partial {
	return Partial{
		PointsPerSubset: p.PointsPerSubset,
		SubsetCount:     p.SubsetCount,
		LevelCount:      p.LevelCount,
	}
}

// IsEmpty reports whether p carries no fields.
func (p Partial) IsEmpty() bool {
	return p == Partial{}
}

// Overlay returns p with every field present in o replacing p's.
func (p Partial) Overlay(o Partial) Partial {
	if o.Speed != nil {
		p.Speed = o.Speed
	}
	if o.RotationSpeed != nil {
		p.RotationSpeed = o.RotationSpeed
	}
	if o.CameraFOV != nil {
		p.CameraFOV = o.CameraFOV
	}
	if o.MouseLocked != nil {
		p.MouseLocked = o.MouseLocked
	}
	if o.Playing != nil {
		p.Playing = o.Playing
	}
	if o.PointsPerSubset != nil {
		p.PointsPerSubset = o.PointsPerSubset
	}
	if o.SubsetCount != nil {
		p.SubsetCount = o.SubsetCount
	}
	if o.LevelCount != nil {
		p.LevelCount = o.LevelCount
	}
	return p
}

// Validate rejects non-finite numbers, structural counts below 1 and a field
// of view outside (0, 180). Every problem is reported.
func (p Partial) Validate() error {
	var errs []error
	finite := func(name string, v *float64) {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			errs = append(errs, fmt.Errorf("%s must be finite, got %v", name, *v))
		}
	}
	positive := func(name string, v *int) {
		if v != nil && *v < 1 {
			errs = append(errs, fmt.Errorf("%s must be >= 1, got %d", name, *v))
		}
	}

	finite("speed", p.Speed)
	finite("rotationSpeed", p.RotationSpeed)
	finite("cameraFov", p.CameraFOV)
	if p.CameraFOV != nil && (*p.CameraFOV <= 0 || *p.CameraFOV >= 180) {
		errs = append(errs, fmt.Errorf("cameraFov must be in (0, 180), got %v", *p.CameraFOV))
	}
	positive("pointsPerSubset", p.PointsPerSubset)
	positive("subsetCount", p.SubsetCount)
	positive("levelCount", p.LevelCount)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Validate checks a complete settings record.
func (s Settings) Validate() error {
	return s.Select(allFields).Validate()
}

// allFields has every field present.
var allFields = Partial{
	Speed: Float(0), RotationSpeed: Float(0), CameraFOV: Float(0),
	MouseLocked: Bool(false), Playing: Bool(false),
	PointsPerSubset: Int(0), SubsetCount: Int(0), LevelCount: Int(0),
}

// WithRotationDirection sets the sign of the rotation speed from a direction
// flag, as the settings menu presents magnitude and direction separately.
// Clockwise is negative.
func WithRotationDirection(p Partial, clockwise bool) Partial {
	if p.RotationSpeed == nil {
		return p
	}
	v := math.Abs(*p.RotationSpeed)
	if clockwise {
		v = -v
	}
	p.RotationSpeed = &v
	return p
}
