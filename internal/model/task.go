package model

import "time"

// TaskStatus is the lifecycle state of a maintenance task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// OpenTaskStatuses are the states in which a task still blocks generation for its plan.
var OpenTaskStatuses = []TaskStatus{TaskPending, TaskAssigned, TaskInProgress}

// IsOpen reports whether the task is still pending, assigned or in progress.
func (s TaskStatus) IsOpen() bool {
	return s == TaskPending || s == TaskAssigned || s == TaskInProgress
}

// Trigger records which clock caused a task to be generated.
type Trigger string

const (
	TriggerTime   Trigger = "time"
	TriggerHours  Trigger = "hours"
	TriggerBoth   Trigger = "both"
	TriggerManual Trigger = "manual"
)

// MaintenanceTask is one concrete occurrence of a plan, or a standalone job when PlanID is nil.
type MaintenanceTask struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	PlanID    *int64 `gorm:"index" json:"plan_id"`
	MachineID *int64 `gorm:"index" json:"machine_id"`
	// OpenPlanID mirrors PlanID while the task is open and is cleared once it closes.
	// Its unique index allows at most one open task per plan.
	OpenPlanID  *int64     `gorm:"uniqueIndex" json:"-"`
	Title       string     `gorm:"size:256;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Status      TaskStatus `gorm:"size:16;not null;index" json:"status"`
	Priority    Priority   `gorm:"size:16;not null" json:"priority"`
	TriggeredBy Trigger    `gorm:"size:16;not null" json:"triggered_by"`
	AssignedTo  *int64     `gorm:"index" json:"assigned_to"`
	DueAt       *time.Time `json:"due_at"`
	// ShiftDeadline is set for shift-critical plans.
	ShiftDeadline        *time.Time `json:"shift_deadline"`
	PastDeadline         bool       `gorm:"not null" json:"past_deadline"`
	HaltedByEscalationID *int64     `json:"halted_by_escalation_id"`
	CreatedBy            *int64     `json:"created_by"`
	StartedAt            *time.Time `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at"`
	CompletedBy          *int64     `json:"completed_by"`
	CompletionNote       string     `gorm:"type:text" json:"completion_note,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Associations
	Results     []ChecklistItemResult `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
	Escalations []Escalation          `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"escalations,omitempty"`
}

// ChecklistItemResult is the outcome of one checklist item within one task.
type ChecklistItemResult struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	TaskID          int64     `gorm:"not null;uniqueIndex:idx_result_task_item" json:"task_id"`
	ChecklistItemID int64     `gorm:"not null;uniqueIndex:idx_result_task_item" json:"checklist_item_id"`
	DecisionType    string    `gorm:"size:20;not null" json:"decision_type"`
	BoolAnswer      *bool     `json:"bool_answer,omitempty"`
	MeasuredValue   *float64  `json:"measured_value,omitempty"`
	PhotoRef        string    `gorm:"size:512" json:"photo_ref,omitempty"`
	Passed          bool      `gorm:"not null" json:"passed"`
	OnFailureAction string    `gorm:"size:16;not null" json:"on_failure_action"`
	RecordedBy      *int64    `json:"recorded_by"`
	RecordedAt      time.Time `gorm:"not null" json:"recorded_at"`
}

// TableName keeps the schema's table name.
func (ChecklistItemResult) TableName() string {
	return "maintenance_checklist_results"
}

// TaskAssignment assigns a plan to a user for one day. At most one row per (user, plan, day).
type TaskAssignment struct {
	ID                int64     `gorm:"primaryKey" json:"id"`
	UserID            int64     `gorm:"not null;uniqueIndex:idx_assignment_user_plan_date" json:"user_id"`
	MaintenancePlanID int64     `gorm:"not null;uniqueIndex:idx_assignment_user_plan_date" json:"maintenance_plan_id"`
	AssignmentDate    time.Time `gorm:"not null;uniqueIndex:idx_assignment_user_plan_date" json:"assignment_date"`
	PriorityOrder     int       `gorm:"not null" json:"priority_order"`
	TaskID            *int64    `gorm:"index" json:"task_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName keeps the schema's table name.
func (TaskAssignment) TableName() string {
	return "maintenance_task_assignments"
}
