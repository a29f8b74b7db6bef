// Package tasks runs short-lived sub-animations (bubble fade, jiggle burst,
// reveal slide-in) on the overlay tick. Each task owns an explicit stop
// condition; a task never re-enters the behavior tick.
package tasks

import "time"

type Kind string

const (
	KindBubble Kind = "BUBBLE"
	KindJiggle Kind = "JIGGLE"
	KindReveal Kind = "REVEAL"
)

// Task is stepped at its cadence until it reports done.
type Task interface {
	Step(now time.Time) (done bool)
}

// Func adapts a plain function to Task.
type Func func(now time.Time) bool

func (f Func) Step(now time.Time) bool { return f(now) }

type entry struct {
	kind  Kind
	every time.Duration
	next  time.Time
	task  Task
}

// Scheduler holds at most one task per kind. Starting a kind that is already
// running replaces it.
type Scheduler struct {
	entries []*entry
}

func NewScheduler() *Scheduler { return &Scheduler{} }

// Start runs t every interval, first at start.
func (s *Scheduler) Start(kind Kind, start time.Time, every time.Duration, t Task) {
	s.Cancel(kind)
	s.entries = append(s.entries, &entry{kind: kind, every: every, next: start, task: t})
}

func (s *Scheduler) Cancel(kind Kind) {
	for i, e := range s.entries {
		if e.kind == kind {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) Running(kind Kind) bool {
	for _, e := range s.entries {
		if e.kind == kind {
			return true
		}
	}
	return false
}

func (s *Scheduler) Len() int { return len(s.entries) }

// Step runs every due task once. Missed intervals are not replayed.
func (s *Scheduler) Step(now time.Time) int {
	ran := 0
	keep := s.entries[:0]
	for _, e := range s.entries {
		if now.Before(e.next) {
			keep = append(keep, e)
			continue
		}
		ran++
		if e.task.Step(now) {
			continue
		}
		e.next = now.Add(e.every)
		keep = append(keep, e)
	}
	for i := len(keep); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = keep
	return ran
}
