package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/due"
	"maintenance-backend/internal/model"
)

// CreateStandaloneTask stores an ad-hoc task without a plan.
func (s *gormStore) CreateStandaloneTask(ctx context.Context, in StandaloneTaskInput) (*model.MaintenanceTask, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	priority, err := validPriority(in.Priority)
	if err != nil {
		return nil, err
	}

	task := model.MaintenanceTask{
		MachineID:   in.MachineID,
		Title:       title,
		Description: in.Description,
		Status:      model.TaskPending,
		Priority:    priority,
		TriggeredBy: model.TriggerManual,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   in.CreatedBy,
	}
	if in.DueAt != nil {
		d := in.DueAt.UTC()
		task.DueAt = &d
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.MachineID != nil {
			var m model.Machine
			if err := tx.Select("id").First(&m, *in.MachineID).Error; err != nil {
				return lookup(err, "machine %d", *in.MachineID)
			}
		}
		if in.AssignedTo != nil {
			if _, err := activeUser(tx, *in.AssignedTo); err != nil {
				return err
			}
			task.Status = model.TaskAssigned
		}
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// StartTask moves a pending or assigned task to in_progress.
func (s *gormStore) StartTask(ctx context.Context, taskID int64, actor *int64, at time.Time) (*model.MaintenanceTask, error) {
	var task model.MaintenanceTask
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&task, taskID).Error; err != nil {
			return lookup(err, "task %d", taskID)
		}
		if task.Status != model.TaskPending && task.Status != model.TaskAssigned {
			return fmt.Errorf("%w: cannot start task %d in status %s", ErrTaskState, task.ID, task.Status)
		}
		started := at.UTC()
		updates := map[string]any{"status": model.TaskInProgress, "started_at": started}
		if task.AssignedTo == nil && actor != nil {
			updates["assigned_to"] = *actor
		}
		if err := tx.Model(&task).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to start task %d: %w", task.ID, err)
		}
		return tx.First(&task, taskID).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// CompleteTask completes an in-progress task. Plan tasks need every checklist item evaluated
// and no unsettled blocking escalation; completing one advances the plan's markers.
func (s *gormStore) CompleteTask(ctx context.Context, taskID int64, in CompleteInput) (*model.MaintenanceTask, error) {
	if in.At.IsZero() {
		in.At = time.Now()
	}
	at := in.At.UTC()

	var task model.MaintenanceTask
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&task, taskID).Error; err != nil {
			return lookup(err, "task %d", taskID)
		}
		if task.Status != model.TaskInProgress {
			return fmt.Errorf("%w: cannot complete task %d in status %s", ErrTaskState, task.ID, task.Status)
		}

		var blocking int64
		if err := tx.Model(&model.Escalation{}).
			Where("task_id = ? AND blocking = ? AND status IN ?", task.ID, true, unsettled).
			Count(&blocking).Error; err != nil {
			return fmt.Errorf("failed to check escalations of task %d: %w", task.ID, err)
		}
		if blocking > 0 {
			return fmt.Errorf("%w: task %d", ErrTaskHalted, task.ID)
		}

		if task.PlanID != nil {
			if err := s.advancePlan(tx, &task, at); err != nil {
				return err
			}
		}

		if err := tx.Model(&task).Updates(map[string]any{
			"status":                  model.TaskCompleted,
			"completed_at":            at,
			"completed_by":            in.Actor,
			"completion_note":         in.Note,
			"open_plan_id":            nil,
			"halted_by_escalation_id": nil,
		}).Error; err != nil {
			return fmt.Errorf("failed to complete task %d: %w", task.ID, err)
		}
		return tx.First(&task, taskID).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// advancePlan checks the task's checklist is complete and moves the plan's markers forward.
func (s *gormStore) advancePlan(tx *gorm.DB, task *model.MaintenanceTask, at time.Time) error {
	var plan model.MaintenancePlan
	err := tx.Clauses(forUpdate).First(&plan, *task.PlanID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warn("completing task of a deleted plan",
			zap.Int64("task_id", task.ID), zap.Int64("plan_id", *task.PlanID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load plan %d: %w", *task.PlanID, err)
	}

	var items, results int64
	if err := tx.Model(&model.ChecklistItem{}).Where("plan_id = ?", plan.ID).Count(&items).Error; err != nil {
		return fmt.Errorf("failed to count checklist items of plan %d: %w", plan.ID, err)
	}
	if err := tx.Model(&model.ChecklistItemResult{}).Where("task_id = ?", task.ID).Count(&results).Error; err != nil {
		return fmt.Errorf("failed to count results of task %d: %w", task.ID, err)
	}
	if results < items {
		return fmt.Errorf("%w: %d of %d items evaluated", ErrChecklistIncomplete, results, items)
	}

	sched, err := planSchedule(&plan)
	if err != nil {
		return err
	}
	var machine model.Machine
	if err := tx.Select("id", "current_operating_hours").First(&machine, plan.MachineID).Error; err != nil {
		return lookup(err, "machine %d of plan %d", plan.MachineID, plan.ID)
	}

	m := due.Advance(sched, at, machine.CurrentOperatingHours)
	updates := map[string]any{
		"last_completed_at":    m.LastCompletedAt,
		"last_completed_hours": m.LastCompletedHours,
		"next_due_at":          m.NextDueAt,
		"next_due_hours":       m.NextDueHours,
	}
	if m.NextDueHours != nil {
		updates["hours_status"] = due.HoursStatus(*m.NextDueHours, machine.CurrentOperatingHours).String()
		updates["status_evaluated_at"] = at
	}
	if err := tx.Model(&plan).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to advance plan %d: %w", plan.ID, err)
	}
	return nil
}

// CancelTask cancels an open task. The plan becomes eligible for generation again.
func (s *gormStore) CancelTask(ctx context.Context, taskID int64, actor *int64, note string) (*model.MaintenanceTask, error) {
	var task model.MaintenanceTask
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&task, taskID).Error; err != nil {
			return lookup(err, "task %d", taskID)
		}
		if !task.Status.IsOpen() {
			return fmt.Errorf("%w: cannot cancel task %d in status %s", ErrTaskState, task.ID, task.Status)
		}
		if err := tx.Model(&task).Updates(map[string]any{
			"status":          model.TaskCancelled,
			"completed_by":    actor,
			"completion_note": note,
			"open_plan_id":    nil,
		}).Error; err != nil {
			return fmt.Errorf("failed to cancel task %d: %w", task.ID, err)
		}
		return tx.First(&task, taskID).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes a standalone task that was not completed, with its results and escalations.
func (s *gormStore) DeleteTask(ctx context.Context, taskID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.MaintenanceTask
		if err := tx.Clauses(forUpdate).First(&task, taskID).Error; err != nil {
			return lookup(err, "task %d", taskID)
		}
		if task.PlanID != nil {
			return fmt.Errorf("%w: task %d belongs to plan %d and can only be cancelled", ErrTaskState, task.ID, *task.PlanID)
		}
		if task.Status == model.TaskCompleted {
			return fmt.Errorf("%w: completed task %d cannot be deleted", ErrTaskState, task.ID)
		}

		if err := tx.Where("task_id = ?", task.ID).Delete(&model.Escalation{}).Error; err != nil {
			return fmt.Errorf("failed to delete escalations of task %d: %w", task.ID, err)
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&model.ChecklistItemResult{}).Error; err != nil {
			return fmt.Errorf("failed to delete results of task %d: %w", task.ID, err)
		}
		if err := tx.Delete(&task).Error; err != nil {
			return fmt.Errorf("failed to delete task %d: %w", task.ID, err)
		}
		return nil
	})
}

func activeUser(tx *gorm.DB, userID int64) (*model.User, error) {
	var u model.User
	if err := tx.First(&u, userID).Error; err != nil {
		return nil, lookup(err, "user %d", userID)
	}
	if !u.IsActive {
		return nil, apperr.Validation("user %d is not active", userID)
	}
	return &u, nil
}
