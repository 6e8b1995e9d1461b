package model

import "time"

// Priority of plans and tasks.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities, most urgent first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// MaintenanceType names a kind of maintenance work (lubrication, inspection, ...).
type MaintenanceType struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MaintenancePlan is a recurring maintenance obligation for one machine and one type.
// At least one of the time interval (IntervalType+IntervalValue) and IntervalHours must be set.
type MaintenancePlan struct {
	ID                 int64    `gorm:"primaryKey" json:"id"`
	MachineID          int64    `gorm:"index;not null" json:"machine_id"`
	MaintenanceTypeID  int64    `gorm:"index" json:"maintenance_type_id"`
	Title              string   `gorm:"size:256;not null" json:"title"`
	Description        string   `gorm:"type:text" json:"description,omitempty"`
	IntervalType       *string  `gorm:"size:16" json:"interval_type"`
	IntervalValue      *int     `json:"interval_value"`
	IntervalHours      *float64 `json:"interval_hours"`
	RequiredSkillLevel int      `gorm:"not null" json:"required_skill_level"`
	EstimatedMinutes   int      `json:"estimated_minutes"`
	Priority           Priority `gorm:"size:16;not null" json:"priority"`
	IsShiftCritical    bool     `gorm:"not null" json:"is_shift_critical"`
	ShiftDeadlineTime  *string  `gorm:"size:5" json:"shift_deadline_time"`
	IsActive           bool     `gorm:"not null;index" json:"is_active"`

	LastCompletedAt    *time.Time `json:"last_completed_at"`
	LastCompletedHours *float64   `json:"last_completed_hours"`
	NextDueAt          *time.Time `json:"next_due_at"`
	NextDueHours       *float64   `json:"next_due_hours"`
	// HoursStatus caches the hours-clock status as of the last operating-hours reading.
	HoursStatus       string     `gorm:"size:16" json:"hours_status,omitempty"`
	StatusEvaluatedAt *time.Time `json:"status_evaluated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	ChecklistItems []ChecklistItem `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"checklist_items,omitempty"`
}

// ChecklistItem is one step of a plan's checklist.
type ChecklistItem struct {
	ID              int64    `gorm:"primaryKey" json:"id"`
	PlanID          int64    `gorm:"not null;uniqueIndex:idx_checklist_plan_step" json:"plan_id"`
	StepNumber      int      `gorm:"not null;uniqueIndex:idx_checklist_plan_step" json:"step_number"`
	Title           string   `gorm:"size:256;not null" json:"title"`
	DecisionType    string   `gorm:"size:20;not null" json:"decision_type"`
	ExpectedAnswer  *string  `gorm:"size:64" json:"expected_answer"`
	ToleranceMin    *float64 `json:"tolerance_min"`
	ToleranceMax    *float64 `json:"tolerance_max"`
	Unit            string   `gorm:"size:16" json:"unit,omitempty"`
	OnFailureAction string   `gorm:"size:16;not null" json:"on_failure_action"`

	// Associations
	Instructions []Instruction `gorm:"foreignKey:ChecklistItemID;constraint:OnDelete:CASCADE" json:"instructions,omitempty"`
}

// TableName keeps the schema's table name.
func (ChecklistItem) TableName() string {
	return "maintenance_checklist_items"
}

// Instruction is ordered step content for a checklist item.
type Instruction struct {
	ID              int64  `gorm:"primaryKey" json:"id"`
	ChecklistItemID int64  `gorm:"not null;uniqueIndex:idx_instruction_item_step" json:"checklist_item_id"`
	StepNumber      int    `gorm:"not null;uniqueIndex:idx_instruction_item_step" json:"step_number"`
	Content         string `gorm:"type:text;not null" json:"content"`
}

// TableName keeps the schema's table name.
func (Instruction) TableName() string {
	return "maintenance_instructions"
}
