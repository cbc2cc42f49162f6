package settings

import (
	"errors"
	"testing"
	"time"

	"github.com/pthm-cable/hopalong/loop"
)

type fakeRuntime struct {
	live     []Partial
	rebuilds []Settings
	fail     error
}

func (f *fakeRuntime) ApplyLive(p Partial) {
	f.live = append(f.live, p)
}

func (f *fakeRuntime) Rebuild(s Settings) error {
	if f.fail != nil {
		return f.fail
	}
	f.rebuilds = append(f.rebuilds, s)
	return nil
}

var testInitial = Settings{
	Speed: 8, RotationSpeed: 0.005, CameraFOV: 60,
	PointsPerSubset: 32000, SubsetCount: 7, LevelCount: 7,
}

func newTestReconciler() (*Reconciler, *fakeRuntime, *loop.ManualClock, *loop.Scheduler) {
	clock := loop.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sched := loop.NewScheduler(clock)
	rt := &fakeRuntime{}
	r := NewReconciler(ReconcilerOptions{
		Runtime:   rt,
		Scheduler: sched,
		Debounce:  time.Second,
		Initial:   testInitial,
	})
	return r, rt, clock, sched
}

func TestLiveOnlyNeverRebuilds(t *testing.T) {
	r, rt, clock, sched := newTestReconciler()

	if err := r.Apply(Partial{Speed: Float(5)}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(5 * time.Second)
	sched.Step()

	if len(rt.rebuilds) != 0 || r.Rebuilds() != 0 {
		t.Errorf("expected no rebuild, got %d", len(rt.rebuilds))
	}
	if len(rt.live) != 1 || *rt.live[0].Speed != 5 {
		t.Errorf("expected live speed 5 applied, got %+v", rt.live)
	}
	if r.Settings().Speed != 5 {
		t.Errorf("expected canonical speed 5, got %v", r.Settings().Speed)
	}
	if r.Pending() {
		t.Error("expected nothing pending")
	}
}

func TestLiveSpeedIsFloored(t *testing.T) {
	r, rt, _, _ := newTestReconciler()

	if err := r.Apply(Partial{Speed: Float(-992)}); err != nil {
		t.Fatal(err)
	}
	if *rt.live[0].Speed != 0 || r.Settings().Speed != 0 {
		t.Errorf("expected floored speed 0, runtime got %v, canonical %v", *rt.live[0].Speed, r.Settings().Speed)
	}
}

func TestStructuralChangesAreDebounced(t *testing.T) {
	r, rt, clock, sched := newTestReconciler()

	if err := r.Apply(Partial{SubsetCount: Int(10)}); err != nil {
		t.Fatal(err)
	}
	clock.Advance(500 * time.Millisecond)
	sched.Step()

	if err := r.Apply(Partial{SubsetCount: Int(4), LevelCount: Int(3)}); err != nil {
		t.Fatal(err)
	}

	// The first change's window has passed but was restarted
	clock.Advance(700 * time.Millisecond)
	sched.Step()
	if len(rt.rebuilds) != 0 {
		t.Fatalf("expected no rebuild inside the restarted window, got %d", len(rt.rebuilds))
	}

	clock.Advance(300 * time.Millisecond)
	sched.Step()
	if len(rt.rebuilds) != 1 {
		t.Fatalf("expected exactly one rebuild, got %d", len(rt.rebuilds))
	}

	got := rt.rebuilds[0]
	if got.SubsetCount != 4 || got.LevelCount != 3 || got.PointsPerSubset != 32000 {
		t.Errorf("expected rebuild with the second change's values, got %+v", got)
	}
	if got.Speed != 8 {
		t.Errorf("expected live settings carried into the rebuild, got speed %v", got.Speed)
	}

	clock.Advance(10 * time.Second)
	sched.Step()
	if len(rt.rebuilds) != 1 {
		t.Errorf("expected no further rebuilds, got %d", len(rt.rebuilds))
	}
	if r.Active().SubsetCount != 4 {
		t.Errorf("expected active subsets 4, got %d", r.Active().SubsetCount)
	}
}

func TestPublishes(t *testing.T) {
	r, _, clock, sched := newTestReconciler()

	var seen []Settings
	r.Subscribe(func(s Settings) { seen = append(seen, s) })

	_ = r.Apply(Partial{Speed: Float(3)})
	_ = r.Apply(Partial{SubsetCount: Int(9)})

	if len(seen) != 2 {
		t.Fatalf("expected 2 publishes before rebuild, got %d", len(seen))
	}
	// Pending structural values are visible immediately
	if seen[1].SubsetCount != 9 || seen[1].Speed != 3 {
		t.Errorf("expected pending value reflected, got %+v", seen[1])
	}

	clock.Advance(time.Second)
	sched.Step()
	if len(seen) != 3 {
		t.Errorf("expected publish after rebuild, got %d", len(seen))
	}
	if r.Publishes() != 3 {
		t.Errorf("expected publish count 3, got %d", r.Publishes())
	}
}

func TestInvalidChangesNothing(t *testing.T) {
	r, rt, _, _ := newTestReconciler()
	published := 0
	r.Subscribe(func(Settings) { published++ })

	err := r.Apply(Partial{Speed: Float(2), SubsetCount: Int(0)})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if len(rt.live) != 0 || r.Pending() || published != 0 {
		t.Error("expected an invalid change to leave everything untouched")
	}
	if r.Settings() != testInitial {
		t.Errorf("expected settings unchanged, got %+v", r.Settings())
	}
}

func TestFailedRebuildReverts(t *testing.T) {
	r, rt, clock, sched := newTestReconciler()
	rt.fail = errors.New("no surface")

	_ = r.Apply(Partial{LevelCount: Int(2), Speed: Float(4)})
	clock.Advance(time.Second)
	sched.Step()

	s := r.Settings()
	if s.LevelCount != 7 {
		t.Errorf("expected structural values reverted to 7 levels, got %d", s.LevelCount)
	}
	if s.Speed != 4 {
		t.Errorf("expected live values kept, got speed %v", s.Speed)
	}
	if r.Failures() != 1 || r.Rebuilds() != 0 {
		t.Errorf("expected 1 failure and 0 rebuilds, got %d and %d", r.Failures(), r.Rebuilds())
	}
}

func TestFlushAndClose(t *testing.T) {
	r, rt, _, _ := newTestReconciler()

	_ = r.Apply(Partial{PointsPerSubset: Int(1000)})
	r.Flush()
	if len(rt.rebuilds) != 1 || rt.rebuilds[0].PointsPerSubset != 1000 {
		t.Fatalf("expected flush to rebuild immediately, got %+v", rt.rebuilds)
	}
	r.Flush()
	if len(rt.rebuilds) != 1 {
		t.Error("expected second flush to be a no-op")
	}

	_ = r.Apply(Partial{PointsPerSubset: Int(2000)})
	r.Close()
	if r.Pending() {
		t.Error("expected close to cancel the pending rebuild")
	}
}

func TestUnsubscribe(t *testing.T) {
	r, _, _, _ := newTestReconciler()

	a, b := 0, 0
	unsubA := r.Subscribe(func(Settings) { a++ })
	r.Subscribe(func(Settings) { b++ })

	_ = r.Apply(Partial{Speed: Float(1)})
	unsubA()
	_ = r.Apply(Partial{Speed: Float(2)})

	if a != 1 || b != 2 {
		t.Errorf("expected a=1 b=2, got a=%d b=%d", a, b)
	}
}
