// Package config provides configuration loading and validation for the attractor field.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Orbit     OrbitConfig     `yaml:"orbit"`
	Field     FieldConfig     `yaml:"field"`
	Camera    CameraConfig    `yaml:"camera"`
	Motion    MotionConfig    `yaml:"motion"`
	Color     ColorConfig     `yaml:"color"`
	Timing    TimingConfig    `yaml:"timing"`
	Render    RenderConfig    `yaml:"render"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Remote    RemoteConfig    `yaml:"remote"`
	Audio     AudioConfig     `yaml:"audio"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds window settings.
type ScreenConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	TargetFPS int    `yaml:"target_fps"`
	Title     string `yaml:"title"`
}

// Range is a closed interval a parameter is sampled from.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// ParamRanges holds the sampling interval of each attractor parameter.
type ParamRanges struct {
	A Range `yaml:"a"`
	B Range `yaml:"b"`
	C Range `yaml:"c"`
	D Range `yaml:"d"`
	E Range `yaml:"e"`
}

// OrbitConfig holds orbit generation parameters.
type OrbitConfig struct {
	Scale             float64     `yaml:"scale"`              // Normalized orbit half-extent
	Workers           int         `yaml:"workers"`            // 0 = GOMAXPROCS, 1 = sequential
	ParallelThreshold int         `yaml:"parallel_threshold"` // Minimum total points for the worker pool
	Ranges            ParamRanges `yaml:"ranges"`
}

// FieldConfig holds the structural defaults of the particle field.
type FieldConfig struct {
	Levels          int     `yaml:"levels"`
	Subsets         int     `yaml:"subsets"`
	PointsPerSubset int     `yaml:"points_per_subset"`
	LevelDepth      float64 `yaml:"level_depth"`
}

// CameraConfig holds camera tracking and projection parameters.
type CameraConfig struct {
	Bound     float64 `yaml:"bound"`      // Max |x|, |y| of the camera position
	Easing    float64 `yaml:"easing"`     // Fraction of the remaining distance covered per frame
	FOV       float64 `yaml:"fov"`        // Vertical field of view in degrees
	Near      float64 `yaml:"near"`       // Near clip plane
	FarFactor float64 `yaml:"far_factor"` // Far plane as a multiple of orbit.scale
}

// MotionConfig holds the initial live motion values and keyboard steps.
type MotionConfig struct {
	Speed         float64 `yaml:"speed"`          // Depth advanced per frame
	RotationSpeed float64 `yaml:"rotation_speed"` // Radians per frame
	SpeedStep     float64 `yaml:"speed_step"`
	RotationStep  float64 `yaml:"rotation_step"`
}

// ColorConfig holds the fixed saturation/brightness of particle colors.
type ColorConfig struct {
	Saturation float64 `yaml:"saturation"`
	Brightness float64 `yaml:"brightness"`
}

// TimingConfig holds timer periods.
type TimingConfig struct {
	RegenerateInterval time.Duration `yaml:"regenerate_interval"`
	Debounce           time.Duration `yaml:"debounce"`
}

// RenderConfig holds drawable-surface parameters.
type RenderConfig struct {
	Sprite      string  `yaml:"sprite"`       // Point sprite image (empty = generated glow)
	SpriteSize  float64 `yaml:"sprite_size"`  // Billboard size in world units
	PointStride int     `yaml:"point_stride"` // Draw every Nth point
	FogDensity  float64 `yaml:"fog_density"`  // Exponential fog density
}

// TelemetryConfig holds performance logging parameters.
type TelemetryConfig struct {
	PerfWindow  int           `yaml:"perf_window"`
	LogInterval time.Duration `yaml:"log_interval"`
}

// RemoteConfig holds the websocket control endpoint address.
type RemoteConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}

// AudioConfig holds soundtrack settings.
type AudioConfig struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	CameraZ float64 // Camera depth: half the orbit scale
	Far     float64 // Far clip plane
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Orbit.Scale > 0 && !math.IsInf(c.Orbit.Scale, 0), "orbit.scale must be positive, got %v", c.Orbit.Scale)
	check(c.Orbit.Workers >= 0, "orbit.workers must be >= 0, got %d", c.Orbit.Workers)
	for _, p := range []struct {
		name string
		r    Range
	}{
		{"a", c.Orbit.Ranges.A}, {"b", c.Orbit.Ranges.B}, {"c", c.Orbit.Ranges.C},
		{"d", c.Orbit.Ranges.D}, {"e", c.Orbit.Ranges.E},
	} {
		check(p.r.Min <= p.r.Max, "orbit.ranges.%s: min %v > max %v", p.name, p.r.Min, p.r.Max)
	}

	check(c.Field.Levels >= 1, "field.levels must be >= 1, got %d", c.Field.Levels)
	check(c.Field.Subsets >= 1, "field.subsets must be >= 1, got %d", c.Field.Subsets)
	check(c.Field.PointsPerSubset >= 1, "field.points_per_subset must be >= 1, got %d", c.Field.PointsPerSubset)
	check(c.Field.LevelDepth > 0, "field.level_depth must be positive, got %v", c.Field.LevelDepth)

	check(c.Camera.Bound >= 0, "camera.bound must be >= 0, got %v", c.Camera.Bound)
	check(c.Camera.Easing > 0 && c.Camera.Easing <= 1, "camera.easing must be in (0, 1], got %v", c.Camera.Easing)
	check(c.Camera.FOV > 0 && c.Camera.FOV < 180, "camera.fov must be in (0, 180), got %v", c.Camera.FOV)
	check(c.Camera.Near > 0, "camera.near must be positive, got %v", c.Camera.Near)
	check(c.Camera.FarFactor > 0, "camera.far_factor must be positive, got %v", c.Camera.FarFactor)

	check(c.Motion.Speed >= 0, "motion.speed must be >= 0, got %v", c.Motion.Speed)

	check(c.Color.Saturation >= 0 && c.Color.Saturation <= 1, "color.saturation must be in [0, 1], got %v", c.Color.Saturation)
	check(c.Color.Brightness >= 0 && c.Color.Brightness <= 1, "color.brightness must be in [0, 1], got %v", c.Color.Brightness)

	check(c.Timing.RegenerateInterval > 0, "timing.regenerate_interval must be positive, got %v", c.Timing.RegenerateInterval)
	check(c.Timing.Debounce >= 0, "timing.debounce must be >= 0, got %v", c.Timing.Debounce)

	check(c.Render.PointStride >= 1, "render.point_stride must be >= 1, got %d", c.Render.PointStride)

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.CameraZ = c.Orbit.Scale / 2
	c.Derived.Far = c.Orbit.Scale * c.Camera.FarFactor
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
