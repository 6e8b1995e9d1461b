package model

import "time"

// PushSubscription holds a user's browser push endpoint for escalation notifications.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	UserID    int64     `gorm:"index;not null"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// All returns every persisted entity in migration order.
func All() []any {
	return []any{
		&User{},
		&Machine{},
		&OperatingHoursReading{},
		&MaintenanceType{},
		&MaintenancePlan{},
		&ChecklistItem{},
		&Instruction{},
		&MaintenanceTask{},
		&ChecklistItemResult{},
		&Escalation{},
		&TaskAssignment{},
		&PushSubscription{},
	}
}
