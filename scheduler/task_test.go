package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTriggerIntervalNextAddsDuration(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	trig := Trigger{Kind: TriggerInterval, IntervalSeconds: 30}
	assert.Equal(t, from.Add(30*time.Second), trig.next(from))
}

func TestTriggerTimeNextLaterTodayWhenStillAhead(t *testing.T) {
	from := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	trig := Trigger{Kind: TriggerTime, Hour: 9, Minute: 30}
	next := trig.next(from)
	assert.Equal(t, time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC), next)
}

func TestTriggerTimeNextRollsToTomorrowWhenPassed(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	trig := Trigger{Kind: TriggerTime, Hour: 9, Minute: 30}
	next := trig.next(from)
	assert.Equal(t, time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC), next)
}

func TestTriggerTimeRespectsWeekday(t *testing.T) {
	from := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC) // a Thursday
	wed := time.Wednesday
	trig := Trigger{Kind: TriggerTime, Hour: 9, Minute: 0, Weekday: &wed}
	next := trig.next(from)
	assert.Equal(t, time.Wednesday, next.Weekday())
	assert.True(t, next.After(from))
}

func TestScheduledTaskDueOnlyWhenActiveAndPast(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	active := &ScheduledTask{State: StateActive, NextRun: &past}
	assert.True(t, active.due(now))

	notYet := &ScheduledTask{State: StateActive, NextRun: &future}
	assert.False(t, notYet.due(now))

	paused := &ScheduledTask{State: StatePaused, NextRun: &past}
	assert.False(t, paused.due(now))
}

func TestScheduledTaskAdvanceComputesNextRun(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	task := &ScheduledTask{
		State:   StateActive,
		Trigger: Trigger{Kind: TriggerInterval, IntervalSeconds: 60},
		NextRun: &now,
	}
	task.advance(now)
	assert.Equal(t, 1, task.RunCount)
	assert.Equal(t, now, *task.LastRun)
	assert.Equal(t, now.Add(60*time.Second), *task.NextRun)
	assert.Equal(t, StateActive, task.State)
}

func TestScheduledTaskAdvanceCompletesAtMaxRuns(t *testing.T) {
	now := time.Now()
	maxRuns := 2
	task := &ScheduledTask{
		State:   StateActive,
		Trigger: Trigger{Kind: TriggerInterval, IntervalSeconds: 60},
		MaxRuns: &maxRuns,
	}
	task.advance(now)
	assert.Equal(t, StateActive, task.State)
	task.advance(now)
	assert.Equal(t, StateCompleted, task.State)
	assert.Nil(t, task.NextRun)
}
