package store

import (
	"fmt"
	"time"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/checklist"
	"maintenance-backend/internal/due"
	"maintenance-backend/internal/model"
	"maintenance-backend/internal/parse"
)

// planSchedule turns the nullable interval columns of a plan into a due.Schedule.
func planSchedule(p *model.MaintenancePlan) (due.Schedule, error) {
	var every *due.Interval
	if p.IntervalType != nil || p.IntervalValue != nil {
		if p.IntervalType == nil || p.IntervalValue == nil {
			return due.Schedule{}, apperr.Validation("plan %d: interval_type and interval_value must be set together", p.ID)
		}
		iv, err := due.NewInterval(*p.IntervalType, *p.IntervalValue)
		if err != nil {
			return due.Schedule{}, fmt.Errorf("plan %d: %w", p.ID, err)
		}
		every = &iv
	}

	rec, err := due.NewRecurrence(every, p.IntervalHours)
	if err != nil {
		return due.Schedule{}, fmt.Errorf("plan %d: %w", p.ID, err)
	}
	return due.Schedule{
		Recurrence: rec,
		Markers: due.Markers{
			LastCompletedAt:    p.LastCompletedAt,
			LastCompletedHours: p.LastCompletedHours,
			NextDueAt:          p.NextDueAt,
			NextDueHours:       p.NextDueHours,
		},
	}, nil
}

// checklistItems converts stored items into evaluator items.
func checklistItems(items []model.ChecklistItem) ([]checklist.Item, error) {
	out := make([]checklist.Item, 0, len(items))
	for _, it := range items {
		d, err := checklist.NewDecision(it.DecisionType, it.ExpectedAnswer, it.ToleranceMin, it.ToleranceMax, it.Unit)
		if err != nil {
			return nil, fmt.Errorf("checklist item %d: %w", it.ID, err)
		}
		action, err := checklist.ParseAction(it.OnFailureAction)
		if err != nil {
			return nil, fmt.Errorf("checklist item %d: %w", it.ID, err)
		}
		out = append(out, checklist.Item{
			ID:        it.ID,
			Step:      it.StepNumber,
			Title:     it.Title,
			Decision:  d,
			OnFailure: action,
		})
	}
	return out, nil
}

// shiftDeadline places the plan's "HH:MM" deadline on the later of the due day and the
// generation day, in loc.
func shiftDeadline(clock string, dueAt, at time.Time, loc *time.Location) (time.Time, error) {
	ct, err := parse.ParseClockTime(clock)
	if err != nil {
		return time.Time{}, apperr.Validation("shift_deadline_time: %v", err)
	}
	day := later(dueAt, at).In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), ct.Hour, ct.Minute, ct.Second, 0, loc), nil
}

func trigger(t due.Trigger) model.Trigger {
	switch {
	case t.Time && t.Hours:
		return model.TriggerBoth
	case t.Hours:
		return model.TriggerHours
	default:
		return model.TriggerTime
	}
}

func validPriority(p model.Priority) (model.Priority, error) {
	switch p {
	case "":
		return model.PriorityNormal, nil
	case model.PriorityLow, model.PriorityNormal, model.PriorityHigh, model.PriorityCritical:
		return p, nil
	}
	return "", apperr.Validation("unknown priority %q", p)
}

// planStatus evaluates one plan against its machine.
func planStatus(p *model.MaintenancePlan, m *model.Machine, at time.Time) (PlanStatus, error) {
	sched, err := planSchedule(p)
	if err != nil {
		return PlanStatus{}, err
	}
	ps := PlanStatus{
		PlanID:                p.ID,
		Title:                 p.Title,
		MachineID:             p.MachineID,
		Priority:              p.Priority,
		CurrentOperatingHours: m.CurrentOperatingHours,
		Evaluation:            due.Evaluate(sched, at, m.CurrentOperatingHours),
	}
	ps.MachineName = m.Name
	if dueAt, ok := sched.DueAt(at); ok {
		ps.NextDueAt = &dueAt
	}
	if dueHours, ok := sched.DueHours(); ok {
		ps.NextDueHours = &dueHours
	}
	return ps, nil
}
