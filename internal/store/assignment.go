package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/assign"
	"maintenance-backend/internal/model"
)

// AssignTask assigns or reassigns an open task. For plan tasks the (user, plan, day)
// assignment row of the task is updated in place rather than duplicated.
func (s *gormStore) AssignTask(ctx context.Context, taskID, userID int64, at time.Time) (*model.MaintenanceTask, error) {
	var task model.MaintenanceTask
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&task, taskID).Error; err != nil {
			return lookup(err, "task %d", taskID)
		}
		if !task.Status.IsOpen() {
			return fmt.Errorf("%w: cannot assign task %d in status %s", ErrTaskState, task.ID, task.Status)
		}
		user, err := activeUser(tx, userID)
		if err != nil {
			return err
		}

		if task.PlanID != nil {
			var plan model.MaintenancePlan
			if err := tx.Select("id", "required_skill_level").First(&plan, *task.PlanID).Error; err != nil {
				return lookup(err, "plan %d of task %d", *task.PlanID, task.ID)
			}
			if user.MaintenanceSkillLevel < plan.RequiredSkillLevel {
				return apperr.Validation("user %d has skill level %d, plan %d requires %d",
					user.ID, user.MaintenanceSkillLevel, plan.ID, plan.RequiredSkillLevel)
			}
			day := at
			if task.DueAt != nil {
				day = later(*task.DueAt, at)
			}
			if err := s.upsertTaskAssignment(tx, &task, user.ID, dayOf(day, s.loc)); err != nil {
				return err
			}
		}

		updates := map[string]any{"assigned_to": user.ID}
		if task.Status == model.TaskPending {
			updates["status"] = model.TaskAssigned
		}
		if err := tx.Model(&task).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to assign task %d: %w", task.ID, err)
		}
		return tx.First(&task, taskID).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// upsertTaskAssignment points the task's assignment row at userID. If userID already holds
// a row for the same plan and day, that row takes over the task and the old one is removed.
func (s *gormStore) upsertTaskAssignment(tx *gorm.DB, task *model.MaintenanceTask, userID int64, day time.Time) error {
	var current model.TaskAssignment
	err := tx.Where("task_id = ?", task.ID).First(&current).Error
	hasCurrent := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load assignment of task %d: %w", task.ID, err)
	}

	var target model.TaskAssignment
	err = tx.Where("user_id = ? AND maintenance_plan_id = ? AND assignment_date = ?", userID, *task.PlanID, day).
		First(&target).Error
	hasTarget := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load assignment for user %d: %w", userID, err)
	}

	switch {
	case hasTarget:
		if hasCurrent && current.ID != target.ID {
			if err := tx.Delete(&current).Error; err != nil {
				return fmt.Errorf("failed to remove assignment %d: %w", current.ID, err)
			}
		}
		return tx.Model(&target).Update("task_id", task.ID).Error
	case hasCurrent:
		order, err := nextPriorityOrder(tx, userID, day)
		if err != nil {
			return err
		}
		return tx.Model(&current).Updates(map[string]any{
			"user_id":         userID,
			"assignment_date": day,
			"priority_order":  order,
		}).Error
	default:
		order, err := nextPriorityOrder(tx, userID, day)
		if err != nil {
			return err
		}
		taskID := task.ID
		return tx.Create(&model.TaskAssignment{
			UserID:            userID,
			MaintenancePlanID: *task.PlanID,
			AssignmentDate:    day,
			PriorityOrder:     order,
			TaskID:            &taskID,
		}).Error
	}
}

func nextPriorityOrder(tx *gorm.DB, userID int64, day time.Time) (int, error) {
	var n int64
	if err := tx.Model(&model.TaskAssignment{}).
		Where("user_id = ? AND assignment_date = ?", userID, day).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count assignments of user %d: %w", userID, err)
	}
	return int(n) + 1, nil
}

// CreateAssignment stores a (user, plan, day) assignment. A second assignment for the same
// triple is rejected.
func (s *gormStore) CreateAssignment(ctx context.Context, in AssignmentInput) (*model.TaskAssignment, error) {
	day := dayOf(in.Date, s.loc)
	a := model.TaskAssignment{
		UserID:            in.UserID,
		MaintenancePlanID: in.PlanID,
		AssignmentDate:    day,
		PriorityOrder:     in.PriorityOrder,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := activeUser(tx, in.UserID)
		if err != nil {
			return err
		}
		var plan model.MaintenancePlan
		if err := tx.Select("id", "required_skill_level").First(&plan, in.PlanID).Error; err != nil {
			return lookup(err, "plan %d", in.PlanID)
		}
		if user.MaintenanceSkillLevel < plan.RequiredSkillLevel {
			return apperr.Validation("user %d has skill level %d, plan %d requires %d",
				user.ID, user.MaintenanceSkillLevel, plan.ID, plan.RequiredSkillLevel)
		}

		var existing int64
		if err := tx.Model(&model.TaskAssignment{}).
			Where("user_id = ? AND maintenance_plan_id = ? AND assignment_date = ?", a.UserID, a.MaintenancePlanID, day).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check assignments: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: user %d, plan %d, %s", ErrDuplicateAssignment, a.UserID, a.MaintenancePlanID, day.Format(time.DateOnly))
		}
		if a.PriorityOrder <= 0 {
			if a.PriorityOrder, err = nextPriorityOrder(tx, a.UserID, day); err != nil {
				return err
			}
		}

		var task model.MaintenanceTask
		err = tx.Select("id").Where("open_plan_id = ?", a.MaintenancePlanID).First(&task).Error
		if err == nil {
			a.TaskID = &task.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load open task of plan %d: %w", a.MaintenancePlanID, err)
		}

		if err := tx.Create(&a).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: user %d, plan %d", ErrDuplicateAssignment, a.UserID, a.MaintenancePlanID)
			}
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AutoAssign assigns every unassigned open plan task to a qualified user for day.
func (s *gormStore) AutoAssign(ctx context.Context, day time.Time) (*AssignSummary, error) {
	d := dayOf(day, s.loc)
	out := &AssignSummary{Day: d}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []model.MaintenanceTask
		if err := tx.Clauses(forUpdate).
			Where("plan_id IS NOT NULL AND assigned_to IS NULL AND status IN ?", model.OpenTaskStatuses).
			Order("id").
			Find(&tasks).Error; err != nil {
			return fmt.Errorf("failed to load open tasks: %w", err)
		}

		var existingRows []model.TaskAssignment
		if err := tx.Where("assignment_date = ?", d).Find(&existingRows).Error; err != nil {
			return fmt.Errorf("failed to load assignments: %w", err)
		}

		planIDs := make([]int64, 0, len(tasks)+len(existingRows))
		for _, t := range tasks {
			planIDs = append(planIDs, *t.PlanID)
		}
		for _, a := range existingRows {
			planIDs = append(planIDs, a.MaintenancePlanID)
		}
		plans := make(map[int64]model.MaintenancePlan)
		if len(planIDs) > 0 {
			var list []model.MaintenancePlan
			if err := tx.Where("id IN ?", planIDs).Find(&list).Error; err != nil {
				return fmt.Errorf("failed to load plans: %w", err)
			}
			for _, p := range list {
				plans[p.ID] = p
			}
		}

		var users []model.User
		if err := tx.Where("is_active = ? AND is_available = ?", true, true).Find(&users).Error; err != nil {
			return fmt.Errorf("failed to load users: %w", err)
		}

		candidates := make([]assign.Candidate, len(users))
		for i, u := range users {
			candidates[i] = assign.Candidate{UserID: u.ID, SkillLevel: u.MaintenanceSkillLevel, PriorityOrder: u.PriorityOrder}
		}
		existing := make([]assign.Existing, len(existingRows))
		for i, a := range existingRows {
			existing[i] = assign.Existing{UserID: a.UserID, PlanID: a.MaintenancePlanID, EstimatedMinutes: plans[a.MaintenancePlanID].EstimatedMinutes}
		}
		taskByPlan := make(map[int64]model.MaintenanceTask, len(tasks))
		var demands []assign.Demand
		for _, t := range tasks {
			p, ok := plans[*t.PlanID]
			if !ok {
				s.log.Warn("open task references a missing plan", zap.Int64("task_id", t.ID), zap.Int64("plan_id", *t.PlanID))
				continue
			}
			taskByPlan[p.ID] = t
			demands = append(demands, assign.Demand{
				PlanID:           p.ID,
				RequiredSkill:    p.RequiredSkillLevel,
				Rank:             t.Priority.Rank(),
				EstimatedMinutes: p.EstimatedMinutes,
			})
		}

		res := assign.Match(demands, candidates, existing, s.assign)
		out.Covered = res.Covered
		out.Unmatched = res.Unmatched

		for _, covered := range res.Covered {
			t, ok := taskByPlan[covered]
			if !ok {
				continue
			}
			// The day's assignment row decides who works on the task.
			for _, a := range existingRows {
				if a.MaintenancePlanID != covered {
					continue
				}
				if err := s.linkAssignment(tx, &t, a); err != nil {
					return err
				}
				break
			}
		}

		for _, p := range res.Proposals {
			t := taskByPlan[p.PlanID]
			taskID := t.ID
			a := model.TaskAssignment{
				UserID:            p.UserID,
				MaintenancePlanID: p.PlanID,
				AssignmentDate:    d,
				PriorityOrder:     p.PriorityOrder,
				TaskID:            &taskID,
			}
			if err := tx.Create(&a).Error; err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: user %d, plan %d", ErrDuplicateAssignment, p.UserID, p.PlanID)
				}
				return fmt.Errorf("failed to create assignment for plan %d: %w", p.PlanID, err)
			}
			if err := assignOpenTask(tx, &t, p.UserID); err != nil {
				return err
			}
			out.Assigned = append(out.Assigned, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("auto-assignment finished",
		zap.Time("day", d),
		zap.Int("assigned", len(out.Assigned)),
		zap.Int("covered", len(out.Covered)),
		zap.Int("unmatched", len(out.Unmatched)))
	return out, nil
}

func (s *gormStore) linkAssignment(tx *gorm.DB, t *model.MaintenanceTask, a model.TaskAssignment) error {
	if a.TaskID == nil {
		if err := tx.Model(&a).Update("task_id", t.ID).Error; err != nil {
			return fmt.Errorf("failed to link assignment %d: %w", a.ID, err)
		}
	}
	return assignOpenTask(tx, t, a.UserID)
}

func assignOpenTask(tx *gorm.DB, t *model.MaintenanceTask, userID int64) error {
	updates := map[string]any{"assigned_to": userID}
	if t.Status == model.TaskPending {
		updates["status"] = model.TaskAssigned
	}
	if err := tx.Model(t).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to assign task %d: %w", t.ID, err)
	}
	return nil
}
