package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/model"
)

func TestStandaloneTaskLifecycle(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	ctx := context.Background()
	m := seedMachine(t, db, "Bandsaw", 0)
	u := seedUser(t, db, "Helper", 0, 1)

	_, err := s.CreateStandaloneTask(ctx, StandaloneTaskInput{Title: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.CreateStandaloneTask(ctx, StandaloneTaskInput{Title: "x", Priority: "urgent"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.CreateStandaloneTask(ctx, StandaloneTaskInput{Title: "x", MachineID: ptr(int64(404))})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	task, err := s.CreateStandaloneTask(ctx, StandaloneTaskInput{
		MachineID:  &m.ID,
		Title:      "Replace saw blade",
		AssignedTo: &u.ID,
		CreatedBy:  &u.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskAssigned, task.Status)
	assert.Equal(t, model.PriorityNormal, task.Priority)
	assert.Equal(t, model.TriggerManual, task.TriggeredBy)
	assert.Nil(t, task.PlanID)

	_, err = s.CompleteTask(ctx, task.ID, CompleteInput{At: refTime})
	assert.ErrorIs(t, err, ErrTaskState)

	started, err := s.StartTask(ctx, task.ID, &u.ID, refTime)
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	done, err := s.CompleteTask(ctx, task.ID, CompleteInput{Actor: &u.ID, Note: "blade swapped", At: refTime.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, done.Status)
	assert.Equal(t, "blade swapped", done.CompletionNote)

	// Completed tasks are immutable.
	_, err = s.CancelTask(ctx, task.ID, nil, "")
	assert.ErrorIs(t, err, ErrTaskState)
	_, err = s.AssignTask(ctx, task.ID, u.ID, refTime)
	assert.ErrorIs(t, err, ErrTaskState)
	assert.ErrorIs(t, s.DeleteTask(ctx, task.ID), ErrTaskState)
}

func TestDeleteTask(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	ctx := context.Background()

	task, err := s.CreateStandaloneTask(ctx, StandaloneTaskInput{Title: "Clean coolant tank"})
	require.NoError(t, err)
	_, err = s.OpenEscalation(ctx, OpenEscalationInput{TaskID: task.ID, Reason: "sludge everywhere"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	var n int64
	require.NoError(t, db.Model(&model.Escalation{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
	assert.ErrorIs(t, s.DeleteTask(ctx, task.ID), apperr.ErrNotFound)

	// Plan tasks are cancelled, not deleted.
	m := seedMachine(t, db, "Grinder", 0)
	p := seedTimePlan(t, s, m.ID, refTime)
	res, err := s.MaterializePlanTask(ctx, p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, s.DeleteTask(ctx, res.Task.ID), ErrTaskState)
}

func TestCompleteTask_AdvancesPlan(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	ctx := context.Background()
	m := seedMachine(t, db, "Hurco VM10", 700)
	p, err := s.CreatePlan(ctx, PlanInput{
		MachineID:     m.ID,
		Title:         "Way lube and filters",
		IntervalType:  ptr("month"),
		IntervalValue: ptr(3),
		IntervalHours: ptr(500.0),
		NextDueAt:     &refTime,
		NextDueHours:  ptr(1200.0),
	})
	require.NoError(t, err)

	res, err := s.MaterializePlanTask(ctx, p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	_, err = s.StartTask(ctx, res.Task.ID, nil, refTime)
	require.NoError(t, err)

	completedAt := refTime.Add(3 * time.Hour)
	_, err = s.CompleteTask(ctx, res.Task.ID, CompleteInput{At: completedAt})
	require.NoError(t, err)

	var plan model.MaintenancePlan
	require.NoError(t, db.First(&plan, p.ID).Error)
	require.NotNil(t, plan.NextDueAt)
	require.NotNil(t, plan.NextDueHours)
	assert.True(t, plan.NextDueAt.Equal(completedAt.AddDate(0, 3, 0)))
	assert.Equal(t, 1200.0, *plan.NextDueHours)
	assert.Equal(t, 700.0, *plan.LastCompletedHours)

	// Closed tasks free the plan for the next occurrence.
	var task model.MaintenanceTask
	require.NoError(t, db.First(&task, res.Task.ID).Error)
	assert.Nil(t, task.OpenPlanID)
	next, err := s.MaterializePlanTask(ctx, p.ID, completedAt.AddDate(0, 3, 0), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, next.Outcome)
}

func TestCancelTask_ReleasesPlan(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	ctx := context.Background()
	m := seedMachine(t, db, "EDM", 0)
	p := seedTimePlan(t, s, m.ID, refTime)

	res, err := s.MaterializePlanTask(ctx, p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	cancelled, err := s.CancelTask(ctx, res.Task.ID, nil, "machine scrapped")
	require.NoError(t, err)
	assert.Equal(t, model.TaskCancelled, cancelled.Status)

	again, err := s.MaterializePlanTask(ctx, p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, again.Outcome)
}
