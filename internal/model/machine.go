package model

import "time"

// MachineCategory groups machines on the shop floor.
type MachineCategory string

const (
	CategoryCNC        MachineCategory = "cnc"
	CategoryAutomation MachineCategory = "automation"
	CategoryMeasuring  MachineCategory = "measuring"
	CategoryOther      MachineCategory = "other"
)

// Machine represents a piece of shop-floor equipment with an operating-hours counter.
type Machine struct {
	ID                      int64           `gorm:"primaryKey" json:"id"`
	Name                    string          `gorm:"size:256;not null" json:"name"`
	Category                MachineCategory `gorm:"size:32;not null" json:"category"`
	RequiresShiftChecklist  bool            `gorm:"not null" json:"requires_shift_checklist"`
	CurrentOperatingHours   float64         `gorm:"not null" json:"current_operating_hours"`
	OperatingHoursUpdatedAt *time.Time      `json:"operating_hours_updated_at"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`

	// Associations
	Readings []OperatingHoursReading `gorm:"foreignKey:MachineID;constraint:OnDelete:CASCADE" json:"-"`
}

// ReadingSource tells where an operating-hours reading came from.
type ReadingSource string

const (
	SourceManual ReadingSource = "manual"
	SourceOCR    ReadingSource = "ocr"
	SourceAPI    ReadingSource = "api"
)

// Valid reports whether s is a known source.
func (s ReadingSource) Valid() bool {
	switch s {
	case SourceManual, SourceOCR, SourceAPI:
		return true
	}
	return false
}

// OperatingHoursReading is an append-only log entry of a machine's hour counter.
type OperatingHoursReading struct {
	ID            int64         `gorm:"primaryKey" json:"id"`
	MachineID     int64         `gorm:"index;not null" json:"machine_id"`
	RecordedHours float64       `gorm:"not null" json:"recorded_hours"`
	PreviousHours float64       `gorm:"not null" json:"previous_hours"`
	Delta         float64       `gorm:"not null" json:"delta"`
	RecordedBy    *int64        `json:"recorded_by"`
	RecordedAt    time.Time     `gorm:"not null;index" json:"recorded_at"`
	Source        ReadingSource `gorm:"size:16;not null" json:"source"`
	Anomaly       bool          `gorm:"not null" json:"anomaly"`
	AnomalyNote   string        `gorm:"size:256" json:"anomaly_note,omitempty"`
}

// TableName keeps the log table name used by the dashboards.
func (OperatingHoursReading) TableName() string {
	return "operating_hours_log"
}
