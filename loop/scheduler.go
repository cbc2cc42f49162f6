package loop

import "time"

// Task is a scheduled callback. A stopped task never runs again.
type Task struct {
	name     string
	interval time.Duration
	next     time.Time
	once     bool
	stopped  bool
	runs     int
	fn       func()
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.name
}

// Stop cancels the task. Safe to call from inside the task itself.
func (t *Task) Stop() {
	t.stopped = true
}

// Stopped reports whether the task was stopped or has completed.
func (t *Task) Stopped() bool {
	return t.stopped
}

// Runs returns how many times the task has fired.
func (t *Task) Runs() int {
	return t.runs
}

// Scheduler runs tasks cooperatively. It is not safe for concurrent use.
type Scheduler struct {
	clock Clock
	tasks []*Task
}

// NewScheduler creates a scheduler. A nil clock uses the system clock.
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{clock: clock}
}

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Every registers fn to run each interval, first after one interval.
// An interval of 0 runs fn on every Step.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) *Task {
	if interval < 0 {
		interval = 0
	}
	t := &Task{
		name:     name,
		interval: interval,
		next:     s.clock.Now().Add(interval),
		fn:       fn,
	}
	s.tasks = append(s.tasks, t)
	return t
}

// After registers fn to run once, delay from now.
func (s *Scheduler) After(name string, delay time.Duration, fn func()) *Task {
	t := &Task{
		name: name,
		next: s.clock.Now().Add(delay),
		once: true,
		fn:   fn,
	}
	s.tasks = append(s.tasks, t)
	return t
}

// Step runs every due task in registration order and returns how many ran.
// Tasks registered during a Step are first considered on the next Step.
func (s *Scheduler) Step() int {
	now := s.clock.Now()
	ran := 0

	n := len(s.tasks)
	for i := 0; i < n; i++ {
		t := s.tasks[i]
		if t.stopped || now.Before(t.next) {
			continue
		}

		t.fn()
		t.runs++
		ran++

		if t.once {
			t.stopped = true
			continue
		}
		if t.stopped {
			continue
		}
		t.next = t.next.Add(t.interval)
		if t.interval > 0 && !t.next.After(now) {
			// Fell behind: skip missed periods instead of bursting
			t.next = now.Add(t.interval)
		}
	}

	s.prune()
	return ran
}

// Len returns the number of live tasks.
func (s *Scheduler) Len() int {
	live := 0
	for _, t := range s.tasks {
		if !t.stopped {
			live++
		}
	}
	return live
}

// StopAll stops every task.
func (s *Scheduler) StopAll() {
	for _, t := range s.tasks {
		t.stopped = true
	}
}

// prune drops stopped tasks, keeping order.
func (s *Scheduler) prune() {
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.stopped {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = kept
}
