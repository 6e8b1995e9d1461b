package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-backend/internal/checklist"
	"maintenance-backend/internal/due"
	"maintenance-backend/internal/model"
)

func TestPlanOverview_BothClocksOR(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	ctx := context.Background()
	m := seedMachine(t, db, "Fanuc Robodrill", 1010)

	future := refTime.AddDate(0, 1, 0)
	hoursOverdue, err := s.CreatePlan(ctx, PlanInput{
		MachineID: m.ID, Title: "Both, hours overdue",
		IntervalType: ptr("month"), IntervalValue: ptr(1), NextDueAt: &future,
		IntervalHours: ptr(1000.0), NextDueHours: ptr(1000.0),
	})
	require.NoError(t, err)
	past := refTime.Add(-time.Hour)
	timeOverdue, err := s.CreatePlan(ctx, PlanInput{
		MachineID: m.ID, Title: "Time only, overdue",
		IntervalType: ptr("week"), IntervalValue: ptr(2), NextDueAt: &past,
	})
	require.NoError(t, err)
	fine, err := s.CreatePlan(ctx, PlanInput{
		MachineID: m.ID, Title: "Both, fine",
		IntervalType: ptr("month"), IntervalValue: ptr(1), NextDueAt: &future,
		IntervalHours: ptr(2000.0), NextDueHours: ptr(3000.0),
	})
	require.NoError(t, err)

	all, err := s.PlanOverview(ctx, refTime, PlanFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	byID := map[int64]PlanStatus{}
	for _, ps := range all {
		byID[ps.PlanID] = ps
	}

	assert.Equal(t, due.Overdue, byID[hoursOverdue.ID].Combined)
	assert.Equal(t, due.OK, *byID[hoursOverdue.ID].Time)
	assert.Equal(t, due.Overdue, byID[timeOverdue.ID].Combined)
	assert.Nil(t, byID[timeOverdue.ID].Hours)
	assert.Equal(t, due.OK, byID[fine.ID].Combined)
	assert.Equal(t, fine.ID, all[2].PlanID)

	overdue, err := s.PlanOverview(ctx, refTime, PlanFilter{Statuses: []due.Status{due.Overdue}})
	require.NoError(t, err)
	assert.Len(t, overdue, 2)

	rollup, err := s.MachineStatus(ctx, refTime)
	require.NoError(t, err)
	require.Len(t, rollup, 1)
	assert.Equal(t, due.Overdue, rollup[0].Status)
	assert.Equal(t, 3, rollup[0].Plans)
	assert.Equal(t, 2, rollup[0].Overdue)
}

func TestMachineStatus_CountsOpenWork(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	ctx := context.Background()
	idle := seedMachine(t, db, "Spare saw", 0)

	p, task := seedChecklistTask(t, s, db, []ChecklistInput{
		{StepNumber: 1, Title: "Cable pack intact", DecisionType: "yes_no", ExpectedAnswer: ptr("yes"), OnFailureAction: "escalate"},
	})
	ids := itemIDs(t, db, p.ID)
	_, err := s.SubmitChecklist(ctx, task.ID, ChecklistSubmission{Answers: map[int64]checklist.Answer{ids[0]: {Raw: "nein"}}, At: refTime})
	require.NoError(t, err)

	rollup, err := s.MachineStatus(ctx, refTime)
	require.NoError(t, err)
	byID := map[int64]MachineRollup{}
	for _, r := range rollup {
		byID[r.MachineID] = r
	}
	require.NotNil(t, task.MachineID)
	assert.Equal(t, 1, byID[*task.MachineID].OpenTasks)
	assert.Equal(t, 1, byID[*task.MachineID].OpenEscalations)
	assert.Equal(t, 0, byID[idle.ID].OpenTasks)
	assert.Equal(t, due.OK, byID[idle.ID].Status)
}

func TestTodayTasks(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	ctx := context.Background()
	u := seedUser(t, db, "Operator", 1, 1)
	other := seedUser(t, db, "Other", 1, 2)

	tomorrow := refTime.AddDate(0, 0, 1)
	later := refTime.Add(4 * time.Hour)
	today, err := s.CreateStandaloneTask(ctx, StandaloneTaskInput{Title: "Today", AssignedTo: &u.ID, DueAt: &later})
	require.NoError(t, err)
	urgent, err := s.CreateStandaloneTask(ctx, StandaloneTaskInput{Title: "Urgent", AssignedTo: &u.ID, Priority: model.PriorityCritical})
	require.NoError(t, err)
	_, err = s.CreateStandaloneTask(ctx, StandaloneTaskInput{Title: "Tomorrow", AssignedTo: &u.ID, DueAt: &tomorrow})
	require.NoError(t, err)
	_, err = s.CreateStandaloneTask(ctx, StandaloneTaskInput{Title: "Not mine", AssignedTo: &other.ID})
	require.NoError(t, err)

	m := seedMachine(t, db, "Washer", 0)
	p := seedTimePlan(t, s, m.ID, refTime)
	res, err := s.MaterializePlanTask(ctx, p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	_, err = s.AssignTask(ctx, res.Task.ID, u.ID, refTime)
	require.NoError(t, err)

	tasks, err := s.TodayTasks(ctx, u.ID, refTime)
	require.NoError(t, err)
	var ids []int64
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []int64{urgent.ID, res.Task.ID, today.ID}, ids)
}

func TestTaskDetail(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	ctx := context.Background()

	_, task := seedChecklistTask(t, s, db, []ChecklistInput{
		{StepNumber: 2, Title: "Second", Instructions: []string{"b1"}},
		{StepNumber: 1, Title: "First", Instructions: []string{"a1", "a2"}},
	})

	d, err := s.TaskDetail(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, d.Plan)
	require.Len(t, d.Plan.ChecklistItems, 2)
	assert.Equal(t, "First", d.Plan.ChecklistItems[0].Title)
	require.Len(t, d.Plan.ChecklistItems[0].Instructions, 2)
	assert.Equal(t, "a1", d.Plan.ChecklistItems[0].Instructions[0].Content)
	assert.Empty(t, d.Task.Results)
}
