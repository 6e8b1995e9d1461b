package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"maintenance-backend/internal/due"
	"maintenance-backend/internal/model"
)

// ActivePlanIDs returns the IDs of all active plans in ascending order.
func (s *gormStore) ActivePlanIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).
		Model(&model.MaintenancePlan{}).
		Where("is_active = ?", true).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list active plans: %w", err)
	}
	return ids, nil
}

// MaterializePlanTask creates the task for one plan if it is due within window from at and
// has no open task yet. The plan row is locked for the duration of the transaction, so
// concurrent runs over the same plan serialize; the unique open_plan_id index catches
// anything that slips past the check.
func (s *gormStore) MaterializePlanTask(ctx context.Context, planID int64, at time.Time, window time.Duration) (Materialized, error) {
	res := Materialized{PlanID: planID}
	at = at.UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan model.MaintenancePlan
		if err := tx.Clauses(forUpdate).First(&plan, planID).Error; err != nil {
			return lookup(err, "plan %d", planID)
		}
		if !plan.IsActive {
			return nil
		}

		sched, err := planSchedule(&plan)
		if err != nil {
			return err
		}

		var machine model.Machine
		if err := tx.First(&machine, plan.MachineID).Error; err != nil {
			return lookup(err, "machine %d of plan %d", plan.MachineID, plan.ID)
		}
		if plan.MaintenanceTypeID != 0 {
			var mt model.MaintenanceType
			if err := tx.Select("id").First(&mt, plan.MaintenanceTypeID).Error; err != nil {
				return lookup(err, "maintenance type %d of plan %d", plan.MaintenanceTypeID, plan.ID)
			}
		}

		trig := due.DueWithin(sched, at, window, machine.CurrentOperatingHours)
		if !trig.Due() {
			return nil
		}

		var open int64
		if err := tx.Model(&model.MaintenanceTask{}).Where("open_plan_id = ?", plan.ID).Count(&open).Error; err != nil {
			return fmt.Errorf("failed to check open tasks of plan %d: %w", plan.ID, err)
		}
		if open > 0 {
			res.Outcome = OutcomeSkipped
			return nil
		}

		task, err := s.newPlanTask(&plan, trig, at)
		if err != nil {
			return err
		}
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("failed to create task for plan %d: %w", plan.ID, err)
		}
		res.Outcome = OutcomeCreated
		res.Task = task
		return nil
	})
	if err == nil {
		return res, nil
	}

	// A concurrent run may have created the task between our check and insert.
	var open int64
	if cerr := s.db.WithContext(ctx).Model(&model.MaintenanceTask{}).Where("open_plan_id = ?", planID).Count(&open).Error; cerr == nil && open > 0 {
		s.log.Debug("plan already has an open task after failed create",
			zap.Int64("plan_id", planID), zap.Error(err))
		return Materialized{PlanID: planID, Outcome: OutcomeSkipped}, nil
	}
	return Materialized{PlanID: planID}, err
}

// newPlanTask builds the task for a triggered plan. Shift-critical plans get a deadline;
// if it already passed, the task is flagged and raised to critical priority.
func (s *gormStore) newPlanTask(plan *model.MaintenancePlan, trig due.Trigger, at time.Time) (*model.MaintenanceTask, error) {
	planID, openID, machineID := plan.ID, plan.ID, plan.MachineID
	dueAt := trig.DueAt.UTC()

	priority, err := validPriority(plan.Priority)
	if err != nil {
		return nil, fmt.Errorf("plan %d: %w", plan.ID, err)
	}

	task := &model.MaintenanceTask{
		PlanID:      &planID,
		MachineID:   &machineID,
		OpenPlanID:  &openID,
		Title:       plan.Title,
		Description: plan.Description,
		Status:      model.TaskPending,
		Priority:    priority,
		TriggeredBy: trigger(trig),
		DueAt:       &dueAt,
	}

	if plan.IsShiftCritical && plan.ShiftDeadlineTime != nil {
		deadline, err := shiftDeadline(*plan.ShiftDeadlineTime, dueAt, at, s.loc)
		if err != nil {
			return nil, fmt.Errorf("plan %d: %w", plan.ID, err)
		}
		deadline = deadline.UTC()
		task.ShiftDeadline = &deadline
		if at.After(deadline) {
			task.PastDeadline = true
			task.Priority = model.PriorityCritical
		}
	}
	return task, nil
}
