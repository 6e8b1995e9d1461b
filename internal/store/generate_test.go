package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/model"
)

func seedTimePlan(t *testing.T, s *gormStore, machineID int64, nextDue time.Time) *model.MaintenancePlan {
	p, err := s.CreatePlan(context.Background(), PlanInput{
		MachineID:     machineID,
		Title:         "Check coolant level",
		IntervalType:  ptr("week"),
		IntervalValue: ptr(1),
		NextDueAt:     &nextDue,
	})
	require.NoError(t, err)
	return p
}

func openTaskCount(t *testing.T, db *gorm.DB, planID int64) int64 {
	var n int64
	require.NoError(t, db.Model(&model.MaintenanceTask{}).
		Where("plan_id = ? AND status IN ?", planID, model.OpenTaskStatuses).
		Count(&n).Error)
	return n
}

func TestMaterializePlanTask_Idempotent(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	ctx := context.Background()
	m := seedMachine(t, db, "Hermle C42", 0)
	p := seedTimePlan(t, s, m.ID, refTime.Add(2*time.Hour))

	first, err := s.MaterializePlanTask(ctx, p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, first.Outcome)
	require.NotNil(t, first.Task)
	assert.Equal(t, model.TaskPending, first.Task.Status)
	assert.Equal(t, model.TriggerTime, first.Task.TriggeredBy)
	assert.True(t, first.Task.DueAt.Equal(refTime.Add(2*time.Hour)))

	second, err := s.MaterializePlanTask(ctx, p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, second.Outcome)
	assert.Equal(t, int64(1), openTaskCount(t, db, p.ID))
}

func TestMaterializePlanTask_NotDueOutsideWindow(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	m := seedMachine(t, db, "Mazak", 0)
	p := seedTimePlan(t, s, m.ID, refTime.Add(48*time.Hour))

	res, err := s.MaterializePlanTask(context.Background(), p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotDue, res.Outcome)
	assert.Equal(t, int64(0), openTaskCount(t, db, p.ID))
}

func TestMaterializePlanTask_ConcurrentRuns(t *testing.T) {
	db := newPooledSQLiteDB(t)
	s := NewGormStore(db, Options{}).(*gormStore)
	m := seedMachine(t, db, "DMG Mori", 0)
	p := seedTimePlan(t, s, m.ID, refTime)

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]Materialized, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = s.MaterializePlanTask(context.Background(), p.ID, refTime, 24*time.Hour)
		}(i)
	}
	close(start)
	wg.Wait()

	outcomes := map[Outcome]int{}
	for i, r := range results {
		require.NoError(t, errs[i])
		outcomes[r.Outcome]++
	}
	assert.Equal(t, map[Outcome]int{OutcomeCreated: 1, OutcomeSkipped: 7}, outcomes)
	assert.Equal(t, int64(1), openTaskCount(t, db, p.ID))
}

func TestMaterializePlanTask_ShiftDeadlinePassed(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	m := seedMachine(t, db, "KUKA KR 16", 0)
	dueAt := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	p, err := s.CreatePlan(context.Background(), PlanInput{
		MachineID:         m.ID,
		Title:             "Robot pre-night-shift check",
		IntervalType:      ptr("day"),
		IntervalValue:     ptr(1),
		IsShiftCritical:   true,
		ShiftDeadlineTime: ptr("17:00"),
		NextDueAt:         &dueAt,
	})
	require.NoError(t, err)

	at := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	res, err := s.MaterializePlanTask(context.Background(), p.ID, at, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)
	assert.True(t, res.Task.PastDeadline)
	assert.Equal(t, model.PriorityCritical, res.Task.Priority)
	assert.True(t, res.Task.ShiftDeadline.Equal(time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)))
}

func TestMaterializePlanTask_ShiftDeadlineAhead(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	m := seedMachine(t, db, "KUKA KR 6", 0)
	dueAt := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	p, err := s.CreatePlan(context.Background(), PlanInput{
		MachineID:         m.ID,
		Title:             "Robot pre-night-shift check",
		IntervalType:      ptr("day"),
		IntervalValue:     ptr(1),
		IsShiftCritical:   true,
		ShiftDeadlineTime: ptr("17:00"),
		NextDueAt:         &dueAt,
		Priority:          model.PriorityHigh,
	})
	require.NoError(t, err)

	res, err := s.MaterializePlanTask(context.Background(), p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)
	assert.False(t, res.Task.PastDeadline)
	assert.Equal(t, model.PriorityHigh, res.Task.Priority)
}

func TestMaterializePlanTask_MissingMachine(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	m := seedMachine(t, db, "Old lathe", 0)
	p := seedTimePlan(t, s, m.ID, refTime)
	require.NoError(t, db.Delete(&model.Machine{}, m.ID).Error)

	_, err := s.MaterializePlanTask(context.Background(), p.ID, refTime, 24*time.Hour)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, int64(0), openTaskCount(t, db, p.ID))
}

func TestMaterializePlanTask_HoursClock(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	ctx := context.Background()
	m := seedMachine(t, db, "Chiron FZ", 940)
	p, err := s.CreatePlan(ctx, PlanInput{
		MachineID:     m.ID,
		Title:         "Replace spindle belt",
		IntervalHours: ptr(1000.0),
		NextDueHours:  ptr(1000.0),
	})
	require.NoError(t, err)

	res, err := s.MaterializePlanTask(ctx, p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotDue, res.Outcome)

	_, err = s.RecordReading(ctx, ReadingInput{MachineID: m.ID, Hours: 960, RecordedAt: refTime})
	require.NoError(t, err)

	res, err = s.MaterializePlanTask(ctx, p.ID, refTime, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, model.TriggerHours, res.Task.TriggeredBy)
}

func TestActivePlanIDs(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	m := seedMachine(t, db, "Index G200", 0)
	a := seedTimePlan(t, s, m.ID, refTime)
	b := seedTimePlan(t, s, m.ID, refTime)
	require.NoError(t, db.Model(&model.MaintenancePlan{}).Where("id = ?", a.ID).Update("is_active", false).Error)

	ids, err := s.ActivePlanIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids)
}

func TestCreatePlan_Validation(t *testing.T) {
	s, db := newSQLiteStore(t, Options{})
	m := seedMachine(t, db, "Zeiss Contura", 0)

	testCases := []struct {
		name string
		in   PlanInput
	}{
		{"no recurrence", PlanInput{MachineID: m.ID, Title: "x"}},
		{"half a time interval", PlanInput{MachineID: m.ID, Title: "x", IntervalType: ptr("week")}},
		{"unknown unit", PlanInput{MachineID: m.ID, Title: "x", IntervalType: ptr("fortnight"), IntervalValue: ptr(1)}},
		{"negative hours", PlanInput{MachineID: m.ID, Title: "x", IntervalHours: ptr(-5.0)}},
		{"skill out of range", PlanInput{MachineID: m.ID, Title: "x", IntervalHours: ptr(10.0), RequiredSkillLevel: 7}},
		{"shift-critical without deadline", PlanInput{MachineID: m.ID, Title: "x", IntervalHours: ptr(10.0), IsShiftCritical: true}},
		{"bad deadline", PlanInput{MachineID: m.ID, Title: "x", IntervalHours: ptr(10.0), IsShiftCritical: true, ShiftDeadlineTime: ptr("25:00")}},
		{"unknown decision type", PlanInput{MachineID: m.ID, Title: "x", IntervalHours: ptr(10.0),
			ChecklistItems: []ChecklistInput{{StepNumber: 1, Title: "a", DecisionType: "maybe"}}}},
		{"unknown failure action", PlanInput{MachineID: m.ID, Title: "x", IntervalHours: ptr(10.0),
			ChecklistItems: []ChecklistInput{{StepNumber: 1, Title: "a", OnFailureAction: "panic"}}}},
		{"measurement without band", PlanInput{MachineID: m.ID, Title: "x", IntervalHours: ptr(10.0),
			ChecklistItems: []ChecklistInput{{StepNumber: 1, Title: "a", DecisionType: "measurement"}}}},
		{"duplicate step", PlanInput{MachineID: m.ID, Title: "x", IntervalHours: ptr(10.0),
			ChecklistItems: []ChecklistInput{{StepNumber: 1, Title: "a"}, {StepNumber: 1, Title: "b"}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreatePlan(context.Background(), tc.in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, err := s.CreatePlan(context.Background(), PlanInput{MachineID: 999, Title: "x", IntervalHours: ptr(10.0)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
