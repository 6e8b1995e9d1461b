package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/checklist"
	"maintenance-backend/internal/escalation"
	"maintenance-backend/internal/model"
)

// SubmitChecklist evaluates the task's not yet evaluated checklist items in step order,
// stores their results and opens an escalation for every failure whose action is escalate
// or stop. A failed stop item halts the task until its escalation is resolved or closed;
// the next submission then resumes after it.
func (s *gormStore) SubmitChecklist(ctx context.Context, taskID int64, in ChecklistSubmission) (*SubmissionResult, error) {
	if in.At.IsZero() {
		in.At = time.Now()
	}
	at := in.At.UTC()

	var out SubmissionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.MaintenanceTask
		if err := tx.Clauses(forUpdate).First(&task, taskID).Error; err != nil {
			return lookup(err, "task %d", taskID)
		}
		if !task.Status.IsOpen() {
			return fmt.Errorf("%w: cannot submit checklist for task %d in status %s", ErrTaskState, task.ID, task.Status)
		}
		if task.PlanID == nil {
			return apperr.Validation("task %d has no plan and no checklist", task.ID)
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

		pending, err := pendingItems(tx, &task)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return fmt.Errorf("%w: checklist of task %d is already complete", ErrTaskState, task.ID)
		}
		if err := checkAnswerTargets(tx, *task.PlanID, in.Answers); err != nil {
			return err
		}

		items, err := checklistItems(pending)
		if err != nil {
			return err
		}
		outcome, err := checklist.Evaluate(items, in.Answers)
		if err != nil {
			return fmt.Errorf("task %d: %w", task.ID, err)
		}

		byID := make(map[int64]model.ChecklistItem, len(pending))
		for _, it := range pending {
			byID[it.ID] = it
		}

		skill, err := userSkill(tx, originator(in.Actor, task.AssignedTo))
		if err != nil {
			return err
		}
		level := escalation.NextLevel(skill)

		var haltedBy *int64
		for _, r := range outcome.Results {
			result := model.ChecklistItemResult{
				TaskID:          task.ID,
				ChecklistItemID: r.ItemID,
				DecisionType:    string(r.Kind),
				BoolAnswer:      r.Answer.Bool,
				MeasuredValue:   r.Answer.Value,
				PhotoRef:        r.Answer.PhotoRef,
				Passed:          r.Passed,
				OnFailureAction: string(r.OnFailure),
				RecordedBy:      in.Actor,
				RecordedAt:      at,
			}
			if err := tx.Create(&result).Error; err != nil {
				return fmt.Errorf("failed to store result of item %d: %w", r.ItemID, err)
			}
			out.Results = append(out.Results, result)

			if !r.Escalates() {
				continue
			}
			to, err := route(tx, level)
			if err != nil {
				return err
			}
			itemID := r.ItemID
			esc := model.Escalation{
				TaskID:              task.ID,
				ChecklistItemID:     &itemID,
				EscalatedFromUserID: in.Actor,
				EscalatedToUserID:   to,
				EscalationLevel:     level,
				Reason:              fmt.Sprintf("checklist step %d failed: %s", r.Step, byID[r.ItemID].Title),
				PhotoRef:            r.Answer.PhotoRef,
				Status:              string(escalation.Open),
				Blocking:            r.OnFailure == checklist.Stop,
			}
			if err := tx.Create(&esc).Error; err != nil {
				return fmt.Errorf("failed to create escalation for item %d: %w", r.ItemID, err)
			}
			out.Escalations = append(out.Escalations, esc)
			if esc.Blocking {
				id := esc.ID
				haltedBy = &id
			}
		}

		updates := map[string]any{"halted_by_escalation_id": haltedBy}
		if task.Status != model.TaskInProgress {
			updates["status"] = model.TaskInProgress
		}
		if task.StartedAt == nil {
			updates["started_at"] = at
		}
		if task.AssignedTo == nil && in.Actor != nil {
			updates["assigned_to"] = *in.Actor
		}
		if err := tx.Model(&task).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update task %d: %w", task.ID, err)
		}
		if err := tx.First(&task, task.ID).Error; err != nil {
			return err
		}

		out.Task = task
		out.Halted = outcome.Halted
		out.Remaining = len(pending) - len(outcome.Results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(out.Escalations, true)
	return &out, nil
}

// pendingItems returns the plan's checklist items without a result for the task, in step order.
func pendingItems(tx *gorm.DB, task *model.MaintenanceTask) ([]model.ChecklistItem, error) {
	var items []model.ChecklistItem
	if err := tx.Where("plan_id = ?", *task.PlanID).Order("step_number").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load checklist of plan %d: %w", *task.PlanID, err)
	}
	var done []int64
	if err := tx.Model(&model.ChecklistItemResult{}).
		Where("task_id = ?", task.ID).
		Pluck("checklist_item_id", &done).Error; err != nil {
		return nil, fmt.Errorf("failed to load results of task %d: %w", task.ID, err)
	}
	evaluated := make(map[int64]bool, len(done))
	for _, id := range done {
		evaluated[id] = true
	}

	pending := items[:0]
	for _, it := range items {
		if !evaluated[it.ID] {
			pending = append(pending, it)
		}
	}
	return pending, nil
}

// checkAnswerTargets rejects answers for items that are not part of the plan's checklist.
func checkAnswerTargets(tx *gorm.DB, planID int64, answers map[int64]checklist.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	var found int64
	if err := tx.Model(&model.ChecklistItem{}).Where("plan_id = ? AND id IN ?", planID, ids).Count(&found).Error; err != nil {
		return fmt.Errorf("failed to check answered items: %w", err)
	}
	if int(found) != len(ids) {
		return apperr.NotFound("answers reference checklist items outside plan %d", planID)
	}
	return nil
}

func originator(actor, assignee *int64) *int64 {
	if actor != nil {
		return actor
	}
	return assignee
}
