// Package scheduler implements the background task dispatcher (spec.md
// §4.13): a single-worker loop that wakes at a fixed cadence, finds due
// ACTIVE tasks, and dispatches their action text back into the
// orchestrator as if user-typed, so scheduled actions are audited and
// authority-gated exactly like interactive ones.
package scheduler

import "time"

// TriggerKind is the closed set of schedule shapes.
type TriggerKind string

const (
	TriggerTime     TriggerKind = "TIME"
	TriggerInterval TriggerKind = "INTERVAL"
)

// Trigger describes when a task should next fire.
type Trigger struct {
	Kind TriggerKind

	// TIME fields.
	Hour    int
	Minute  int
	Weekday *time.Weekday // nil means every day

	// INTERVAL field.
	IntervalSeconds int
}

// next computes the next fire time strictly after from.
func (t Trigger) next(from time.Time) time.Time {
	switch t.Kind {
	case TriggerInterval:
		return from.Add(time.Duration(t.IntervalSeconds) * time.Second)
	default: // TriggerTime
		return t.nextTimeOfDay(from)
	}
}

func (t Trigger) nextTimeOfDay(from time.Time) time.Time {
	candidate := time.Date(from.Year(), from.Month(), from.Day(), t.Hour, t.Minute, 0, 0, from.Location())
	for !candidate.After(from) || (t.Weekday != nil && candidate.Weekday() != *t.Weekday) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// State is the closed set of scheduled-task states.
type State string

const (
	StateActive    State = "ACTIVE"
	StatePaused    State = "PAUSED"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// ScheduledTask is one entry in the scheduler's task set.
type ScheduledTask struct {
	ID         string
	Name       string
	ActionText string
	Trigger    Trigger
	State      State
	LastRun    *time.Time
	NextRun    *time.Time
	RunCount   int
	MaxRuns    *int
}

// due reports whether t should fire at or before now.
func (t *ScheduledTask) due(now time.Time) bool {
	return t.State == StateActive && t.NextRun != nil && !t.NextRun.After(now)
}

// advance records a run at now and recomputes NextRun, transitioning to
// COMPLETED once MaxRuns is reached.
func (t *ScheduledTask) advance(now time.Time) {
	t.LastRun = &now
	t.RunCount++
	if t.MaxRuns != nil && t.RunCount >= *t.MaxRuns {
		t.State = StateCompleted
		t.NextRun = nil
		return
	}
	next := t.Trigger.next(now)
	t.NextRun = &next
}
