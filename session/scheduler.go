package session

import (
	"sync"
	"time"
)

// Scheduler runs deferred tasks keyed by an identifier.
type Scheduler interface {
	// Schedule runs fn once after delay. An existing task with the same key
	// is replaced.
	Schedule(key string, delay time.Duration, fn func())
	// Cancel drops the pending task for key and reports whether one existed.
	Cancel(key string) bool
	// Pending returns the number of tasks that have not fired yet.
	Pending() int
	// Stop cancels every pending task and refuses new ones.
	Stop()
}

type scheduledTask struct {
	timer *time.Timer
	gen   uint64
}

// TimerScheduler implements Scheduler with time.AfterFunc.
type TimerScheduler struct {
	mu      sync.Mutex
	tasks   map[string]scheduledTask
	nextGen uint64
	stopped bool
}

// NewTimerScheduler creates a running scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{tasks: make(map[string]scheduledTask)}
}

func (s *TimerScheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
	}

	s.nextGen++
	gen := s.nextGen
	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.tasks[key]
		if !ok || current.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, key)
		s.mu.Unlock()

		fn()
	})
	s.tasks[key] = scheduledTask{timer: timer, gen: gen}
}

func (s *TimerScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[key]
	if !ok {
		return false
	}
	task.timer.Stop()
	delete(s.tasks, key)
	return true
}

func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, task := range s.tasks {
		task.timer.Stop()
		delete(s.tasks, key)
	}
}
