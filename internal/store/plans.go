package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/model"
	"maintenance-backend/internal/parse"
)

// CreatePlan validates and stores a plan with its checklist items and instructions.
func (s *gormStore) CreatePlan(ctx context.Context, in PlanInput) (*model.MaintenancePlan, error) {
	priority, err := validPriority(in.Priority)
	if err != nil {
		return nil, err
	}
	if !model.ValidSkillLevel(in.RequiredSkillLevel) {
		return nil, apperr.Validation("required_skill_level %d is out of range", in.RequiredSkillLevel)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.EstimatedMinutes < 0 {
		return nil, apperr.Validation("estimated_minutes must not be negative")
	}

	plan := model.MaintenancePlan{
		MachineID:          in.MachineID,
		MaintenanceTypeID:  in.MaintenanceTypeID,
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		IntervalType:       in.IntervalType,
		IntervalValue:      in.IntervalValue,
		IntervalHours:      in.IntervalHours,
		RequiredSkillLevel: in.RequiredSkillLevel,
		EstimatedMinutes:   in.EstimatedMinutes,
		Priority:           priority,
		IsShiftCritical:    in.IsShiftCritical,
		ShiftDeadlineTime:  in.ShiftDeadlineTime,
		IsActive:           true,
		NextDueAt:          in.NextDueAt,
		NextDueHours:       in.NextDueHours,
	}
	if plan.NextDueAt != nil {
		utc := plan.NextDueAt.UTC()
		plan.NextDueAt = &utc
	}
	if _, err := planSchedule(&plan); err != nil {
		return nil, err
	}
	if plan.IsShiftCritical {
		if plan.ShiftDeadlineTime == nil {
			return nil, apperr.Validation("shift-critical plan needs a shift_deadline_time")
		}
		if _, err := parse.ParseClockTime(*plan.ShiftDeadlineTime); err != nil {
			return nil, apperr.Validation("shift_deadline_time: %v", err)
		}
	}

	seen := make(map[int]bool, len(in.ChecklistItems))
	for _, ci := range in.ChecklistItems {
		if seen[ci.StepNumber] {
			return nil, apperr.Validation("duplicate checklist step %d", ci.StepNumber)
		}
		seen[ci.StepNumber] = true
		item := model.ChecklistItem{
			StepNumber:      ci.StepNumber,
			Title:           ci.Title,
			DecisionType:    ci.DecisionType,
			ExpectedAnswer:  ci.ExpectedAnswer,
			ToleranceMin:    ci.ToleranceMin,
			ToleranceMax:    ci.ToleranceMax,
			Unit:            ci.Unit,
			OnFailureAction: ci.OnFailureAction,
		}
		if item.DecisionType == "" {
			item.DecisionType = "none"
		}
		if item.OnFailureAction == "" {
			item.OnFailureAction = "continue"
		}
		for i, text := range ci.Instructions {
			item.Instructions = append(item.Instructions, model.Instruction{StepNumber: i + 1, Content: text})
		}
		plan.ChecklistItems = append(plan.ChecklistItems, item)
	}
	if _, err := checklistItems(plan.ChecklistItems); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var machine model.Machine
		if err := tx.Select("id").First(&machine, plan.MachineID).Error; err != nil {
			return lookup(err, "machine %d", plan.MachineID)
		}
		if plan.MaintenanceTypeID != 0 {
			var mt model.MaintenanceType
			if err := tx.Select("id").First(&mt, plan.MaintenanceTypeID).Error; err != nil {
				return lookup(err, "maintenance type %d", plan.MaintenanceTypeID)
			}
		}
		if err := tx.Create(&plan).Error; err != nil {
			return fmt.Errorf("failed to create plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// SetSkillLevel changes a user's maintenance skill level.
func (s *gormStore) SetSkillLevel(ctx context.Context, userID int64, level int) (*model.User, error) {
	if !model.ValidSkillLevel(level) {
		return nil, apperr.Validation("skill level %d is out of range", level)
	}
	var user model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(forUpdate).First(&user, userID).Error; err != nil {
			return lookup(err, "user %d", userID)
		}
		user.MaintenanceSkillLevel = level
		return tx.Model(&user).Update("maintenance_skill_level", level).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
