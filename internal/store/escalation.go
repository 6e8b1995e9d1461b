package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/escalation"
	"maintenance-backend/internal/model"
)

// route picks the recipient for an escalation at level among active, available users.
func route(tx *gorm.DB, level int) (*int64, error) {
	var users []model.User
	if err := tx.Where("is_active = ? AND is_available = ? AND maintenance_skill_level = ?", true, true, level).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load escalation candidates: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}

	type load struct {
		UserID    int64
		OpenCount int
	}
	var loads []load
	if err := tx.Model(&model.Escalation{}).
		Select("escalated_to_user_id AS user_id, COUNT(*) AS open_count").
		Where("escalated_to_user_id IS NOT NULL AND status IN ?", unsettled).
		Group("escalated_to_user_id").
		Scan(&loads).Error; err != nil {
		return nil, fmt.Errorf("failed to count open escalations: %w", err)
	}
	open := make(map[int64]int, len(loads))
	for _, l := range loads {
		open[l.UserID] = l.OpenCount
	}

	candidates := make([]escalation.Candidate, len(users))
	for i, u := range users {
		candidates[i] = escalation.Candidate{
			UserID:          u.ID,
			SkillLevel:      u.MaintenanceSkillLevel,
			PriorityOrder:   u.PriorityOrder,
			OpenEscalations: open[u.ID],
		}
	}
	id, ok := escalation.Route(level, candidates)
	if !ok {
		return nil, nil
	}
	return &id, nil
}

// OpenEscalation opens an escalation by hand on a task.
func (s *gormStore) OpenEscalation(ctx context.Context, in OpenEscalationInput) (*model.Escalation, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}

	var esc model.Escalation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.MaintenanceTask
		if err := tx.Select("id", "plan_id").First(&task, in.TaskID).Error; err != nil {
			return lookup(err, "task %d", in.TaskID)
		}
		if in.ChecklistItemID != nil {
			var item model.ChecklistItem
			if err := tx.Select("id", "plan_id").First(&item, *in.ChecklistItemID).Error; err != nil {
				return lookup(err, "checklist item %d", *in.ChecklistItemID)
			}
			if task.PlanID == nil || item.PlanID != *task.PlanID {
				return apperr.Validation("checklist item %d does not belong to task %d", item.ID, task.ID)
			}
		}

		skill, err := userSkill(tx, in.Actor)
		if err != nil {
			return err
		}
		level := escalation.NextLevel(skill)
		to, err := route(tx, level)
		if err != nil {
			return err
		}

		esc = model.Escalation{
			TaskID:              task.ID,
			ChecklistItemID:     in.ChecklistItemID,
			EscalatedFromUserID: in.Actor,
			EscalatedToUserID:   to,
			EscalationLevel:     level,
			Reason:              reason,
			PhotoRef:            strings.TrimSpace(in.PhotoRef),
			Status:              string(escalation.Open),
		}
		if err := tx.Create(&esc).Error; err != nil {
			return fmt.Errorf("failed to create escalation for task %d: %w", task.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify([]model.Escalation{esc}, true)
	return &esc, nil
}

// TransitionEscalation moves an escalation one step forward. The transition is validated
// against the stored status under a row lock, never against what the client last saw.
func (s *gormStore) TransitionEscalation(ctx context.Context, id int64, in TransitionInput) (*model.Escalation, error) {
	to, err := escalation.ParseStatus(in.To)
	if err != nil {
		return nil, err
	}
	resolution := strings.TrimSpace(in.Resolution)
	if to == escalation.Resolved && resolution == "" {
		return nil, ErrResolutionRequired
	}
	if in.At.IsZero() {
		in.At = time.Now()
	}
	at := in.At.UTC()
	if in.Actor <= 0 {
		return nil, apperr.Validation("escalation %s needs an acting user", to)
	}

	var esc model.Escalation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&esc, id).Error; err != nil {
			return lookup(err, "escalation %d", id)
		}
		actor, err := activeUser(tx, in.Actor)
		if err != nil {
			return err
		}
		from, err := escalation.ParseStatus(esc.Status)
		if err != nil {
			return err
		}
		if err := escalation.Transition(from, to); err != nil {
			return fmt.Errorf("escalation %d %s -> %s: %w", esc.ID, from, to, err)
		}

		updates := map[string]any{"status": string(to)}
		switch to {
		case escalation.Acknowledged:
			updates["acknowledged_by"] = actor.ID
			updates["acknowledged_at"] = at
		case escalation.Resolved:
			updates["resolved_by"] = actor.ID
			updates["resolved_at"] = at
			updates["resolution"] = resolution
		case escalation.Closed:
			updates["closed_by"] = actor.ID
			updates["closed_at"] = at
		}
		if err := tx.Model(&esc).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update escalation %d: %w", esc.ID, err)
		}

		if to.Settled() {
			if err := tx.Model(&model.MaintenanceTask{}).
				Where("id = ? AND halted_by_escalation_id = ?", esc.TaskID, esc.ID).
				Update("halted_by_escalation_id", nil).Error; err != nil {
				return fmt.Errorf("failed to release task %d: %w", esc.TaskID, err)
			}
		}
		return tx.First(&esc, id).Error
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordEscalationTransition(string(to))
	return &esc, nil
}

// RaiseEscalation moves an unsettled escalation one level up the ladder and re-routes it.
func (s *gormStore) RaiseEscalation(ctx context.Context, id int64, actor *int64) (*model.Escalation, error) {
	var esc model.Escalation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&esc, id).Error; err != nil {
			return lookup(err, "escalation %d", id)
		}
		status, err := escalation.ParseStatus(esc.Status)
		if err != nil {
			return err
		}
		if status.Settled() {
			return fmt.Errorf("%w: escalation %d is %s", escalation.ErrIllegalTransition, esc.ID, status)
		}
		level, err := escalation.Raise(esc.EscalationLevel)
		if err != nil {
			return fmt.Errorf("escalation %d: %w", esc.ID, err)
		}
		to, err := route(tx, level)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"escalation_level":     level,
			"escalated_to_user_id": to,
		}
		if actor != nil {
			updates["escalated_from_user_id"] = *actor
		}
		if err := tx.Model(&esc).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to raise escalation %d: %w", esc.ID, err)
		}
		return tx.First(&esc, id).Error
	})
	if err != nil {
		return nil, err
	}
	s.notify([]model.Escalation{esc}, false)
	return &esc, nil
}

// Escalation returns one escalation.
func (s *gormStore) Escalation(ctx context.Context, id int64) (*model.Escalation, error) {
	var esc model.Escalation
	if err := s.db.WithContext(ctx).First(&esc, id).Error; err != nil {
		return nil, lookup(err, "escalation %d", id)
	}
	return &esc, nil
}
