package store

import (
	"time"

	"maintenance-backend/internal/checklist"
	"maintenance-backend/internal/due"
	"maintenance-backend/internal/model"
)

// PlanInput describes a new maintenance plan with its checklist.
type PlanInput struct {
	MachineID          int64            `json:"machine_id" binding:"required"`
	MaintenanceTypeID  int64            `json:"maintenance_type_id"`
	Title              string           `json:"title" binding:"required"`
	Description        string           `json:"description"`
	IntervalType       *string          `json:"interval_type"`
	IntervalValue      *int             `json:"interval_value"`
	IntervalHours      *float64         `json:"interval_hours"`
	RequiredSkillLevel int              `json:"required_skill_level"`
	EstimatedMinutes   int              `json:"estimated_minutes"`
	Priority           model.Priority   `json:"priority"`
	IsShiftCritical    bool             `json:"is_shift_critical"`
	ShiftDeadlineTime  *string          `json:"shift_deadline_time"`
	NextDueAt          *time.Time       `json:"next_due_at"`
	NextDueHours       *float64         `json:"next_due_hours"`
	ChecklistItems     []ChecklistInput `json:"checklist_items"`
}

// ChecklistInput describes one checklist item of a new plan.
type ChecklistInput struct {
	StepNumber      int      `json:"step_number"`
	Title           string   `json:"title"`
	DecisionType    string   `json:"decision_type"`
	ExpectedAnswer  *string  `json:"expected_answer"`
	ToleranceMin    *float64 `json:"tolerance_min"`
	ToleranceMax    *float64 `json:"tolerance_max"`
	Unit            string   `json:"unit"`
	OnFailureAction string   `json:"on_failure_action"`
	Instructions    []string `json:"instructions"`
}

// Outcome of one plan in a generation run.
type Outcome int

const (
	OutcomeNotDue Outcome = iota
	OutcomeCreated
	OutcomeSkipped
)

// Materialized reports what happened to one plan during generation.
type Materialized struct {
	PlanID  int64
	Outcome Outcome
	Task    *model.MaintenanceTask
}

// ReadingInput is a new operating-hours reading.
type ReadingInput struct {
	MachineID  int64
	Hours      float64
	RecordedBy *int64
	RecordedAt time.Time
	Source     model.ReadingSource
}

// ReadingResult is the stored reading with the machine and refreshed hours statuses.
type ReadingResult struct {
	Reading model.OperatingHoursReading `json:"reading"`
	Machine model.Machine               `json:"machine"`
	Plans   []PlanStatus                `json:"plans"`
}

// StandaloneTaskInput describes an ad-hoc task without a plan.
type StandaloneTaskInput struct {
	MachineID   *int64         `json:"machine_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    model.Priority `json:"priority"`
	AssignedTo  *int64         `json:"assigned_to"`
	DueAt       *time.Time     `json:"due_at"`
	CreatedBy   *int64         `json:"-"`
}

// CompleteInput closes a task.
type CompleteInput struct {
	Actor *int64
	Note  string
	At    time.Time
}

// ChecklistSubmission carries answers keyed by checklist item ID.
type ChecklistSubmission struct {
	Actor   *int64
	Answers map[int64]checklist.Answer
	At      time.Time
}

// SubmissionResult is what a checklist submission stored.
type SubmissionResult struct {
	Task        model.MaintenanceTask       `json:"task"`
	Results     []model.ChecklistItemResult `json:"results"`
	Escalations []model.Escalation          `json:"escalations"`
	Halted      bool                        `json:"halted"`
	// Remaining counts checklist items that still have no result.
	Remaining int `json:"remaining"`
}

// OpenEscalationInput opens an escalation by hand.
type OpenEscalationInput struct {
	TaskID          int64
	ChecklistItemID *int64
	Actor           *int64
	Reason          string
	PhotoRef        string
}

// TransitionInput moves an escalation to its next status.
type TransitionInput struct {
	To         string
	Actor      int64
	Resolution string
	At         time.Time
}

// AssignmentInput creates a (user, plan, day) assignment.
type AssignmentInput struct {
	UserID        int64     `json:"user_id" binding:"required"`
	PlanID        int64     `json:"maintenance_plan_id" binding:"required"`
	Date          time.Time `json:"assignment_date" binding:"required"`
	PriorityOrder int       `json:"priority_order"`
}

// AssignSummary is the result of an auto-assignment run.
type AssignSummary struct {
	Day       time.Time              `json:"day"`
	Assigned  []model.TaskAssignment `json:"assigned"`
	Covered   []int64                `json:"covered"`
	Unmatched []int64                `json:"unmatched"`
}

// PlanFilter narrows the plan overview. Empty fields match everything.
type PlanFilter struct {
	Statuses  []due.Status
	MachineID *int64
}

// PlanStatus is one row of the plan overview.
type PlanStatus struct {
	PlanID                int64          `json:"plan_id"`
	Title                 string         `json:"title"`
	MachineID             int64          `json:"machine_id"`
	MachineName           string         `json:"machine_name"`
	Priority              model.Priority `json:"priority"`
	CurrentOperatingHours float64        `json:"current_operating_hours"`
	NextDueAt             *time.Time     `json:"next_due_at,omitempty"`
	NextDueHours          *float64       `json:"next_due_hours,omitempty"`
	OpenTaskID            *int64         `json:"open_task_id,omitempty"`
	due.Evaluation
}

// MachineRollup is the maintenance status of one machine.
type MachineRollup struct {
	MachineID             int64                 `json:"machine_id"`
	Name                  string                `json:"name"`
	Category              model.MachineCategory `json:"category"`
	CurrentOperatingHours float64               `json:"current_operating_hours"`
	Status                due.Status            `json:"status"`
	Plans                 int                   `json:"plans"`
	Overdue               int                   `json:"overdue"`
	DueToday              int                   `json:"due_today"`
	DueSoon               int                   `json:"due_soon"`
	OpenTasks             int                   `json:"open_tasks"`
	OpenEscalations       int                   `json:"open_escalations"`
}

// TaskDetail is a task with its plan checklist, results and escalations.
type TaskDetail struct {
	Task model.MaintenanceTask  `json:"task"`
	Plan *model.MaintenancePlan `json:"plan,omitempty"`
}
