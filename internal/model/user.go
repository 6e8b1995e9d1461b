package model

import "time"

// Maintenance skill levels, lowest first.
const (
	SkillHelper     = 0
	SkillOperator   = 1
	SkillTechnician = 2
	SkillSpecialist = 3
)

// ValidSkillLevel reports whether level is inside the known ladder.
func ValidSkillLevel(level int) bool {
	return level >= SkillHelper && level <= SkillSpecialist
}

// User is a shop-floor worker who can be assigned tasks and receive escalations.
type User struct {
	ID                    int64     `gorm:"primaryKey" json:"id"`
	Name                  string    `gorm:"size:128;not null" json:"name"`
	MaintenanceSkillLevel int       `gorm:"not null" json:"maintenance_skill_level"`
	PriorityOrder         int       `gorm:"not null" json:"priority_order"`
	IsActive              bool      `gorm:"not null" json:"is_active"`
	IsAvailable           bool      `gorm:"not null" json:"is_available"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
