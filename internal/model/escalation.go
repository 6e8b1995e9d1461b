package model

import "time"

// Escalation is a routed problem report raised from a failed checklist item or by hand.
type Escalation struct {
	ID                  int64  `gorm:"primaryKey" json:"id"`
	TaskID              int64  `gorm:"index;not null" json:"task_id"`
	ChecklistItemID     *int64 `json:"checklist_item_id"`
	EscalatedFromUserID *int64 `json:"escalated_from_user_id"`
	EscalatedToUserID   *int64 `gorm:"index" json:"escalated_to_user_id"`
	EscalationLevel     int    `gorm:"not null" json:"escalation_level"`
	Reason              string `gorm:"type:text;not null" json:"reason"`
	PhotoRef            string `gorm:"size:512" json:"photo_ref,omitempty"`
	Status              string `gorm:"size:16;not null;index" json:"status"`
	// Blocking is true when a stop action raised the escalation; the task stays halted until it settles.
	Blocking       bool       `gorm:"not null" json:"blocking"`
	Resolution     string     `gorm:"type:text" json:"resolution,omitempty"`
	AcknowledgedBy *int64     `json:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	ResolvedBy     *int64     `json:"resolved_by"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	ClosedBy       *int64     `json:"closed_by"`
	ClosedAt       *time.Time `json:"closed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName keeps the schema's table name.
func (Escalation) TableName() string {
	return "maintenance_escalations"
}
