package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jinzhu/now"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"maintenance-backend/internal/due"
	"maintenance-backend/internal/model"
)

// PlanOverview evaluates every active plan on both clocks, worst status first.
func (s *gormStore) PlanOverview(ctx context.Context, at time.Time, filter PlanFilter) ([]PlanStatus, error) {
	db := s.db.WithContext(ctx)
	at = at.In(s.loc)

	q := db.Where("is_active = ?", true)
	if filter.MachineID != nil {
		q = q.Where("machine_id = ?", *filter.MachineID)
	}
	var plans []model.MaintenancePlan
	if err := q.Order("id").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to load plans: %w", err)
	}

	var machines []model.Machine
	if err := db.Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to load machines: %w", err)
	}
	byMachine := make(map[int64]*model.Machine, len(machines))
	for i := range machines {
		byMachine[machines[i].ID] = &machines[i]
	}

	var open []model.MaintenanceTask
	if err := db.Select("id", "open_plan_id").Where("open_plan_id IS NOT NULL").Find(&open).Error; err != nil {
		return nil, fmt.Errorf("failed to load open tasks: %w", err)
	}
	openByPlan := make(map[int64]int64, len(open))
	for _, t := range open {
		openByPlan[*t.OpenPlanID] = t.ID
	}

	wanted := make(map[due.Status]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		wanted[st] = true
	}

	out := make([]PlanStatus, 0, len(plans))
	for i := range plans {
		p := &plans[i]
		m, ok := byMachine[p.MachineID]
		if !ok {
			s.log.Warn("plan references a missing machine", zap.Int64("plan_id", p.ID), zap.Int64("machine_id", p.MachineID))
			continue
		}
		ps, err := planStatus(p, m, at)
		if err != nil {
			s.log.Warn("skipping invalid plan", zap.Int64("plan_id", p.ID), zap.Error(err))
			continue
		}
		if len(wanted) > 0 && !wanted[ps.Combined] {
			continue
		}
		if id, ok := openByPlan[p.ID]; ok {
			ps.OpenTaskID = &id
		}
		out = append(out, ps)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Combined != b.Combined {
			return a.Combined > b.Combined
		}
		if a.NextDueAt != nil && b.NextDueAt != nil && !a.NextDueAt.Equal(*b.NextDueAt) {
			return a.NextDueAt.Before(*b.NextDueAt)
		}
		return a.PlanID < b.PlanID
	})
	return out, nil
}

// MachineStatus rolls the plan overview up per machine.
func (s *gormStore) MachineStatus(ctx context.Context, at time.Time) ([]MachineRollup, error) {
	db := s.db.WithContext(ctx)

	var machines []model.Machine
	if err := db.Order("id").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to load machines: %w", err)
	}
	plans, err := s.PlanOverview(ctx, at, PlanFilter{})
	if err != nil {
		return nil, err
	}

	type count struct {
		MachineID int64
		N         int
	}
	var openTasks, openEscalations []count
	if err := db.Model(&model.MaintenanceTask{}).
		Select("machine_id, COUNT(*) AS n").
		Where("machine_id IS NOT NULL AND status IN ?", model.OpenTaskStatuses).
		Group("machine_id").
		Scan(&openTasks).Error; err != nil {
		return nil, fmt.Errorf("failed to count open tasks: %w", err)
	}
	if err := db.Table("maintenance_escalations").
		Select("maintenance_tasks.machine_id AS machine_id, COUNT(*) AS n").
		Joins("JOIN maintenance_tasks ON maintenance_tasks.id = maintenance_escalations.task_id").
		Where("maintenance_tasks.machine_id IS NOT NULL AND maintenance_escalations.status IN ?", unsettled).
		Group("maintenance_tasks.machine_id").
		Scan(&openEscalations).Error; err != nil {
		return nil, fmt.Errorf("failed to count open escalations: %w", err)
	}

	rollups := make([]MachineRollup, len(machines))
	index := make(map[int64]int, len(machines))
	for i, m := range machines {
		index[m.ID] = i
		rollups[i] = MachineRollup{
			MachineID:             m.ID,
			Name:                  m.Name,
			Category:              m.Category,
			CurrentOperatingHours: m.CurrentOperatingHours,
		}
	}
	for _, p := range plans {
		i, ok := index[p.MachineID]
		if !ok {
			continue
		}
		r := &rollups[i]
		r.Plans++
		r.Status = due.Worst(r.Status, p.Combined)
		switch p.Combined {
		case due.Overdue:
			r.Overdue++
		case due.DueToday:
			r.DueToday++
		case due.DueSoon:
			r.DueSoon++
		}
	}
	for _, c := range openTasks {
		if i, ok := index[c.MachineID]; ok {
			rollups[i].OpenTasks = c.N
		}
	}
	for _, c := range openEscalations {
		if i, ok := index[c.MachineID]; ok {
			rollups[i].OpenEscalations = c.N
		}
	}
	return rollups, nil
}

// TodayTasks returns the user's open tasks for day: tasks assigned to them that are due by
// the end of the day, plus tasks linked to their assignments for that day. Most urgent first.
func (s *gormStore) TodayTasks(ctx context.Context, userID int64, day time.Time) ([]model.MaintenanceTask, error) {
	db := s.db.WithContext(ctx)
	endOfDay := now.With(day.In(s.loc)).EndOfDay().UTC()

	var linked []int64
	if err := db.Model(&model.TaskAssignment{}).
		Where("user_id = ? AND assignment_date = ? AND task_id IS NOT NULL", userID, dayOf(day, s.loc)).
		Pluck("task_id", &linked).Error; err != nil {
		return nil, fmt.Errorf("failed to load assignments of user %d: %w", userID, err)
	}

	q := db.Where("status IN ?", model.OpenTaskStatuses)
	mine := db.Where("assigned_to = ? AND (due_at IS NULL OR due_at <= ?)", userID, endOfDay)
	if len(linked) > 0 {
		mine = mine.Or("id IN ?", linked)
	}
	var tasks []model.MaintenanceTask
	if err := q.Where(mine).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to load tasks of user %d: %w", userID, err)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		switch {
		case a.DueAt == nil && b.DueAt == nil:
		case a.DueAt == nil:
			return false
		case b.DueAt == nil:
			return true
		case !a.DueAt.Equal(*b.DueAt):
			return a.DueAt.Before(*b.DueAt)
		}
		return a.ID < b.ID
	})
	return tasks, nil
}

// UnassignedEscalations lists unsettled escalations that nobody could be routed to,
// highest level first.
func (s *gormStore) UnassignedEscalations(ctx context.Context) ([]model.Escalation, error) {
	var escs []model.Escalation
	if err := s.db.WithContext(ctx).
		Where("escalated_to_user_id IS NULL AND status IN ?", unsettled).
		Order("escalation_level DESC").
		Order("created_at").
		Order("id").
		Find(&escs).Error; err != nil {
		return nil, fmt.Errorf("failed to load unassigned escalations: %w", err)
	}
	return escs, nil
}

// TaskDetail returns a task with results and escalations, and its plan's checklist.
func (s *gormStore) TaskDetail(ctx context.Context, taskID int64) (*TaskDetail, error) {
	db := s.db.WithContext(ctx)

	var d TaskDetail
	if err := db.
		Preload("Results", func(tx *gorm.DB) *gorm.DB { return tx.Order("recorded_at, id") }).
		Preload("Escalations", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		First(&d.Task, taskID).Error; err != nil {
		return nil, lookup(err, "task %d", taskID)
	}
	if d.Task.PlanID == nil {
		return &d, nil
	}

	var plan model.MaintenancePlan
	err := db.
		Preload("ChecklistItems", func(tx *gorm.DB) *gorm.DB { return tx.Order("step_number") }).
		Preload("ChecklistItems.Instructions", func(tx *gorm.DB) *gorm.DB { return tx.Order("step_number") }).
		First(&plan, *d.Task.PlanID).Error
	if err != nil {
		s.log.Warn("task references a missing plan", zap.Int64("task_id", taskID), zap.Error(err))
		return &d, nil
	}
	d.Plan = &plan
	return &d, nil
}
