package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nova-labs/jarviscore/logging"
	"github.com/nova-labs/jarviscore/storage"
)

// Dispatch sends actionText into the orchestrator exactly as if a user had
// typed it, turnID-scoped so the resulting audit trail reads the same way
// an interactive turn's does.
type Dispatch func(ctx context.Context, actionText string) error

// Scheduler runs the single-worker dispatch loop over an in-memory task
// set, checkpointed against storage's tasks table (spec.md §6: "tasks are
// persisted in the tasks table"). The in-memory set is the source of truth
// for a tick's due computation; db is the durable copy Load repopulates it
// from after a restart.
type Scheduler struct {
	mu       sync.Mutex
	tasks    map[string]*ScheduledTask
	tick     time.Duration
	dispatch Dispatch
	db       *storage.DB
	logger   logging.Logger

	stop chan struct{}
	done chan struct{}
}

// New builds a Scheduler. tick bounds the dispatch loop's wake cadence
// (spec.md §4.13: "wakes at a fixed cadence, ≤1s").
func New(tick time.Duration, dispatch Dispatch, db *storage.DB, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if tick <= 0 || tick > time.Second {
		tick = time.Second
	}
	return &Scheduler{
		tasks:    make(map[string]*ScheduledTask),
		tick:     tick,
		dispatch: dispatch,
		db:       db,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RefuseLegacyJSONLoader halts startup if a legacy JSON task file is found
// at path. JSON-file persistence for scheduled tasks predates the SQLite
// tasks table and is no longer supported — callers must migrate it by
// hand rather than have the scheduler silently import or ignore it.
func RefuseLegacyJSONLoader(path string) error {
	if _, err := os.Stat(path); err == nil {
		return &storage.LegacyTaskFileError{Path: path}
	}
	return nil
}

// Load repopulates the in-memory task set from every ACTIVE/PAUSED row in
// the tasks table, so a restarted process picks back up exactly where the
// last one left off instead of silently forgetting every scheduled task.
func (s *Scheduler) Load(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	rows, err := s.db.ListActiveScheduledTasks(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: load tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		var trigger Trigger
		if err := json.Unmarshal([]byte(row.TriggerJSON), &trigger); err != nil {
			s.logger.ErrorWithContext(ctx, "scheduler: skip task with unreadable trigger", map[string]interface{}{
				"task":  row.Name,
				"error": err.Error(),
			})
			continue
		}
		next := row.ScheduledTime
		t := &ScheduledTask{
			ID:         row.ExternalID,
			Name:       row.Name,
			ActionText: row.Action,
			Trigger:    trigger,
			State:      State(stateFromTaskStatus(row.Status)),
			NextRun:    &next,
			LastRun:    row.LastRun,
			RunCount:   row.RunCount,
			MaxRuns:    row.MaxRuns,
		}
		s.tasks[t.ID] = t
	}
	return nil
}

// Add registers a new task, computes its initial NextRun, and persists it
// to the tasks table.
func (s *Scheduler) Add(ctx context.Context, name, actionText string, trigger Trigger, maxRuns *int) (*ScheduledTask, error) {
	next := trigger.next(time.Now())
	t := &ScheduledTask{
		ID:         uuid.NewString(),
		Name:       name,
		ActionText: actionText,
		Trigger:    trigger,
		State:      StateActive,
		NextRun:    &next,
		MaxRuns:    maxRuns,
	}

	if s.db != nil {
		triggerJSON, err := json.Marshal(trigger)
		if err != nil {
			return nil, fmt.Errorf("scheduler: encode trigger: %w", err)
		}
		if _, err := s.db.CreateScheduledTask(ctx, t.ID, name, actionText, next, string(triggerJSON), maxRuns); err != nil {
			return nil, fmt.Errorf("scheduler: persist task: %w", err)
		}
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()
	return t, nil
}

// Pause/Resume/Cancel mutate a task's state without removing it, except
// Cancel which also stops it from ever firing again.
func (s *Scheduler) Pause(ctx context.Context, id string) error  { return s.setState(ctx, id, StatePaused) }
func (s *Scheduler) Resume(ctx context.Context, id string) error { return s.setState(ctx, id, StateActive) }
func (s *Scheduler) Cancel(ctx context.Context, id string) error { return s.setState(ctx, id, StateCompleted) }

func (s *Scheduler) setState(ctx context.Context, id string, state State) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		t.State = state
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown task %q", id)
	}

	if s.db != nil {
		if err := s.db.SetScheduledTaskStatus(ctx, id, taskStatusFromState(state)); err != nil {
			return fmt.Errorf("scheduler: persist state change: %w", err)
		}
	}
	return nil
}

// List returns every task, in no particular order.
func (s *Scheduler) List() []*ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

// Run starts the dispatch loop; it blocks until ctx is cancelled or Stop
// is called.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.tickOnce(ctx, now)
		}
	}
}

// Stop signals the dispatch loop to exit and waits for it to do so.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) tickOnce(ctx context.Context, now time.Time) {
	due := s.dueTasksLocked(now)
	for _, t := range due {
		if err := s.dispatch(ctx, t.ActionText); err != nil {
			s.logger.ErrorWithContext(ctx, "scheduler: dispatch failed", map[string]interface{}{
				"task":  t.Name,
				"error": err.Error(),
			})
		}
		s.mu.Lock()
		t.advance(now)
		state, runCount, lastRun := t.State, t.RunCount, *t.LastRun
		s.mu.Unlock()

		if s.db != nil {
			if err := s.db.UpdateScheduledTaskRun(ctx, t.ID, taskStatusFromState(state), t.NextRun, runCount, lastRun); err != nil {
				s.logger.ErrorWithContext(ctx, "scheduler: persist run failed", map[string]interface{}{
					"task":  t.Name,
					"error": err.Error(),
				})
			}
		}
	}
}

func (s *Scheduler) dueTasksLocked(now time.Time) []*ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*ScheduledTask
	for _, t := range s.tasks {
		if t.due(now) {
			due = append(due, t)
		}
	}
	return due
}

func taskStatusFromState(state State) storage.TaskStatus {
	switch state {
	case StatePaused:
		return storage.TaskPaused
	case StateCompleted:
		return storage.TaskCompleted
	case StateFailed:
		return storage.TaskFailed
	default:
		return storage.TaskActive
	}
}

func stateFromTaskStatus(status storage.TaskStatus) State {
	switch status {
	case storage.TaskPaused:
		return StatePaused
	case storage.TaskCompleted:
		return StateCompleted
	case storage.TaskFailed:
		return StateFailed
	default:
		return StateActive
	}
}
