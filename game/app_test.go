package game

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pthm-cable/hopalong/config"
	"github.com/pthm-cable/hopalong/loop"
	"github.com/pthm-cable/hopalong/settings"
	"github.com/pthm-cable/hopalong/surface"
	"github.com/pthm-cable/hopalong/telemetry"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Field.Subsets = 3
	cfg.Field.PointsPerSubset = 500
	cfg.Field.Levels = 2
	cfg.Orbit.Workers = 1
	cfg.Audio.Enabled = false
	return cfg
}

type fakePlayer struct {
	calls []bool
}

func (p *fakePlayer) SetPlaying(v bool) { p.calls = append(p.calls, v) }

func newTestApp(t *testing.T, surf surface.Surface) (*App, *loop.ManualClock) {
	t.Helper()
	clock := loop.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	a, err := NewApp(Options{
		Config:  testConfig(),
		Surface: surf,
		Clock:   clock,
		Seed:    42,
	})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return a, clock
}

func TestNewAppFailsFast(t *testing.T) {
	if _, err := NewApp(Options{Config: testConfig()}); !errors.Is(err, ErrMissingSurface) {
		t.Errorf("expected ErrMissingSurface, got %v", err)
	}
	if _, err := NewApp(Options{Surface: surface.NewRecorder()}); !errors.Is(err, ErrMissingConfig) {
		t.Errorf("expected ErrMissingConfig, got %v", err)
	}

	rec := surface.NewRecorder()
	rec.FailAlloc = errors.New("out of buffers")
	if _, err := NewApp(Options{Config: testConfig(), Surface: rec, Seed: 1}); err == nil {
		t.Error("expected allocation failure to surface")
	}
}

func TestStepPresentsEverySet(t *testing.T) {
	rec := surface.NewRecorder()
	a, _ := newTestApp(t, rec)

	for i := 0; i < 3; i++ {
		a.Step()
	}

	if len(rec.Frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(rec.Frames))
	}
	f, _ := rec.LastFrame()
	if len(f.Sets) != 6 {
		t.Errorf("expected 6 sets per frame, got %d", len(f.Sets))
	}
	if f.Index != 2 {
		t.Errorf("expected frame index 2, got %d", f.Index)
	}
	if f.Camera.Z != 750 {
		t.Errorf("expected camera z 750, got %f", f.Camera.Z)
	}
}

func TestChangeSpeedFloor(t *testing.T) {
	a, _ := newTestApp(t, surface.NewRecorder())

	if a.Settings().Speed != 8 {
		t.Fatalf("expected initial speed 8, got %v", a.Settings().Speed)
	}
	if err := a.ChangeSpeed(-1000); err != nil {
		t.Fatal(err)
	}
	if a.Settings().Speed != 0 || a.Instance().Speed() != 0 {
		t.Errorf("expected speed floored at 0, got settings %v instance %v", a.Settings().Speed, a.Instance().Speed())
	}

	if err := a.ChangeRotationSpeed(-1); err != nil {
		t.Fatal(err)
	}
	if got := a.Instance().RotationSpeed(); got != 0.005-1 {
		t.Errorf("expected unbounded negative rotation, got %v", got)
	}
}

func TestLiveSettingsKeepInstance(t *testing.T) {
	a, clock := newTestApp(t, surface.NewRecorder())
	inst := a.Instance()
	published := a.Stats().Publishes

	if err := a.ApplySettings(settings.Partial{Speed: settings.Float(5), CameraFOV: settings.Float(75)}); err != nil {
		t.Fatal(err)
	}
	if got := a.Stats().Publishes - published; got != 1 {
		t.Errorf("expected one publish per applied change, got %d", got)
	}
	clock.Advance(5 * time.Second)
	a.Step()

	if a.Instance() != inst {
		t.Error("expected live change to keep the instance")
	}
	if a.Stats().Rebuilds != 0 {
		t.Errorf("expected no rebuild, got %d", a.Stats().Rebuilds)
	}
	if inst.Speed() != 5 || a.Camera().FOV() != 75 {
		t.Errorf("expected speed 5 and fov 75, got %v and %v", inst.Speed(), a.Camera().FOV())
	}
}

func TestStructuralChangesDebounceToOneRebuild(t *testing.T) {
	rec := surface.NewRecorder()
	a, clock := newTestApp(t, rec)
	first := a.Instance()

	var published []settings.Settings
	a.OnSettingsChanged(func(s settings.Settings) { published = append(published, s) })

	if err := a.ApplySettings(settings.Partial{SubsetCount: settings.Int(10)}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(500 * time.Millisecond)
	a.Step()
	if err := a.ApplySettings(settings.Partial{SubsetCount: settings.Int(4), Speed: settings.Float(3)}); err != nil {
		t.Fatal(err)
	}

	// Intermediate state is published before the rebuild
	if len(published) != 2 || published[0].SubsetCount != 10 || published[1].SubsetCount != 4 {
		t.Fatalf("unexpected intermediate publishes: %+v", published)
	}

	clock.Advance(900 * time.Millisecond)
	a.Step()
	if a.Instance() != first {
		t.Fatal("expected no rebuild inside the debounce window")
	}

	clock.Advance(200 * time.Millisecond)
	a.Step()

	second := a.Instance()
	if second == first {
		t.Fatal("expected rebuild after the debounce window")
	}
	if a.Stats().Rebuilds != 1 {
		t.Errorf("expected exactly one rebuild, got %d", a.Stats().Rebuilds)
	}
	if got := second.Levels().Len(); got != 4*2 {
		t.Errorf("expected 8 sets from the second change, got %d", got)
	}
	if second.Speed() != 3 {
		t.Errorf("expected live speed carried into the new instance, got %v", second.Speed())
	}
	if first.State() != StateDestroyed {
		t.Errorf("expected old instance destroyed, got %v", first.State())
	}
	if len(published) != 3 {
		t.Errorf("expected a publish after the rebuild, got %d", len(published))
	}

	// Old buffers are all released, only the new ones remain
	if rec.Live() != 8 {
		t.Errorf("expected 8 live buffers, got %d", rec.Live())
	}
	// Only the new frame and regeneration tasks remain
	if n := a.Scheduler().Len(); n != 2 {
		t.Errorf("expected 2 scheduled tasks, got %d", n)
	}
}

func TestRecenterThenStep(t *testing.T) {
	a, _ := newTestApp(t, surface.NewRecorder())

	a.PointerMoved(1000, 120)
	for i := 0; i < 30; i++ {
		a.Step()
	}
	if a.Camera().X == 0 {
		t.Fatal("expected camera to follow the pointer")
	}

	if err := a.RecenterCamera(); err != nil {
		t.Fatal(err)
	}
	a.Step()

	c := a.Camera()
	if c.X != 0 || c.Y != 0 {
		t.Errorf("expected camera at (0, 0), got (%f, %f)", c.X, c.Y)
	}
	if !c.Locked() || !a.Settings().MouseLocked {
		t.Error("expected mouse lock engaged")
	}
}

func TestSetMouseLockToggle(t *testing.T) {
	a, _ := newTestApp(t, surface.NewRecorder())

	if err := a.SetMouseLock(nil); err != nil {
		t.Fatal(err)
	}
	if !a.Camera().Locked() {
		t.Error("expected toggle to lock")
	}
	if err := a.SetMouseLock(settings.Bool(false)); err != nil {
		t.Fatal(err)
	}
	if a.Camera().Locked() || a.Settings().MouseLocked {
		t.Error("expected explicit unlock")
	}
}

func TestResetDefaults(t *testing.T) {
	a, _ := newTestApp(t, surface.NewRecorder())

	a.HandleAction(ActionSpeedUp)
	a.HandleAction(ActionRotateFaster)
	a.ApplySettings(settings.Partial{CameraFOV: settings.Float(90)})

	if err := a.ResetDefaults(); err != nil {
		t.Fatal(err)
	}
	s := a.Settings()
	if s.Speed != 8 || s.RotationSpeed != 0.005 || s.CameraFOV != 60 {
		t.Errorf("expected defaults restored, got %+v", s)
	}
	if a.Camera().FOV() != 60 {
		t.Errorf("expected camera fov 60, got %v", a.Camera().FOV())
	}
}

func TestPlayingDrivesPlayer(t *testing.T) {
	p := &fakePlayer{}
	a, err := NewApp(Options{Config: testConfig(), Surface: surface.NewRecorder(), Seed: 3, Player: p})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.HandleAction(ActionTogglePlay); err != nil {
		t.Fatal(err)
	}
	if len(p.calls) != 2 || p.calls[0] || !p.calls[1] {
		t.Errorf("expected initial stop then play, got %v", p.calls)
	}
}

func TestInvalidSettingsRejected(t *testing.T) {
	a, _ := newTestApp(t, surface.NewRecorder())
	before := a.Settings()

	err := a.ApplySettings(settings.Partial{SubsetCount: settings.Int(0)})
	if !errors.Is(err, settings.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if a.Settings() != before || a.Stats().PendingRebuild {
		t.Error("expected invalid change to leave settings untouched")
	}
}

// subsetLimit fails allocation for subsets at or beyond max.
type subsetLimit struct {
	*surface.Recorder
	max int
}

func (s subsetLimit) NewBuffer(key surface.Key, capacity int) (surface.Buffer, error) {
	if key.Subset >= s.max {
		return nil, errors.New("out of buffers")
	}
	return s.Recorder.NewBuffer(key, capacity)
}

func TestFailedRebuildRestoresPreviousStructure(t *testing.T) {
	rec := surface.NewRecorder()
	a, _ := newTestApp(t, subsetLimit{Recorder: rec, max: 3})

	if err := a.ApplySettings(settings.Partial{SubsetCount: settings.Int(5), Speed: settings.Float(2)}); err != nil {
		t.Fatal(err)
	}
	a.FlushSettings()

	st := a.Stats()
	if st.FailedRebuilds != 1 || st.Rebuilds != 0 {
		t.Errorf("expected one failed rebuild, got %+v", st)
	}
	if a.Instance() == nil || a.Instance().State() != StateRunning {
		t.Fatal("expected a running instance after a failed rebuild")
	}
	if got := a.Instance().Levels().Len(); got != 6 {
		t.Errorf("expected previous 6 sets restored, got %d", got)
	}
	if s := a.Settings(); s.SubsetCount != 3 || s.Speed != 2 {
		t.Errorf("expected structure reverted and live kept, got %+v", s)
	}
	if rec.Live() != 6 {
		t.Errorf("expected 6 live buffers, got %d", rec.Live())
	}
}

func TestReleaseFailuresAreCounted(t *testing.T) {
	rec := surface.NewRecorder()
	a, _ := newTestApp(t, rec)

	rec.FailRelease = errors.New("context lost")
	if err := a.ApplySettings(settings.Partial{LevelCount: settings.Int(3)}); err != nil {
		t.Fatal(err)
	}
	a.FlushSettings()

	st := a.Stats()
	if st.Rebuilds != 1 {
		t.Fatalf("expected the rebuild to proceed, got %+v", st)
	}
	if st.LeakedBuffers != 6 {
		t.Errorf("expected 6 leaked buffers, got %d", st.LeakedBuffers)
	}
	if st.Sets != 9 {
		t.Errorf("expected 9 sets, got %d", st.Sets)
	}
}

func TestDestroy(t *testing.T) {
	rec := surface.NewRecorder()
	a, _ := newTestApp(t, rec)
	a.Step()
	inst := a.Instance()

	// A pending rebuild must not fire after teardown
	a.ApplySettings(settings.Partial{SubsetCount: settings.Int(2)})

	if err := a.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if inst.State() != StateDestroyed {
		t.Errorf("expected destroyed instance, got %v", inst.State())
	}
	if rec.Live() != 0 {
		t.Errorf("expected every buffer released, got %d live", rec.Live())
	}
	if a.Step() != 0 || a.Scheduler().Len() != 0 {
		t.Error("expected no tasks after destroy")
	}
	if !errors.Is(a.Destroy(), ErrDestroyed) {
		t.Error("expected second destroy to fail")
	}
	if !errors.Is(a.ApplySettings(settings.Partial{Speed: settings.Float(1)}), ErrDestroyed) {
		t.Error("expected settings rejected after destroy")
	}
}

func TestRegenerationWritesOrbitStats(t *testing.T) {
	dir := t.TempDir()
	out, err := telemetry.NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	clock := loop.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	a, err := NewApp(Options{
		Config:  testConfig(),
		Surface: surface.NewRecorder(),
		Clock:   clock,
		Seed:    5,
		Output:  out,
		Perf:    telemetry.NewPerfCollector(10),
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		clock.Advance(3 * time.Second)
		a.Step()
	}
	if got := a.Stats().Regenerations + a.Stats().DegenerateOrbits; got < 4 {
		t.Errorf("expected at least 4 regeneration attempts, got %d", got)
	}

	data, err := os.ReadFile(filepath.Join(dir, "orbits.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("expected orbit stats written")
	}
}
