package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/due"
	"maintenance-backend/internal/hours"
	"maintenance-backend/internal/model"
)

// RecordReading appends an operating-hours reading and refreshes the hours status of the
// machine's plans in the same transaction. A decreasing reading is handled by the
// configured policy: rejected, or logged as an anomaly without moving the counter.
func (s *gormStore) RecordReading(ctx context.Context, in ReadingInput) (*ReadingResult, error) {
	if in.Source == "" {
		in.Source = model.SourceManual
	}
	if !in.Source.Valid() {
		return nil, apperr.Validation("unknown reading source %q", in.Source)
	}
	if in.RecordedAt.IsZero() {
		in.RecordedAt = time.Now()
	}
	at := in.RecordedAt.UTC()

	var out ReadingResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var machine model.Machine
		if err := tx.Clauses(forUpdate).First(&machine, in.MachineID).Error; err != nil {
			return lookup(err, "machine %d", in.MachineID)
		}

		r, err := hours.Evaluate(machine.CurrentOperatingHours, in.Hours, s.policy)
		if err != nil {
			return fmt.Errorf("machine %d: %w", machine.ID, err)
		}

		reading := model.OperatingHoursReading{
			MachineID:     machine.ID,
			RecordedHours: r.Recorded,
			PreviousHours: r.Previous,
			Delta:         r.Delta,
			RecordedBy:    in.RecordedBy,
			RecordedAt:    at,
			Source:        in.Source,
			Anomaly:       r.Anomaly,
			AnomalyNote:   r.AnomalyNote,
		}
		if err := tx.Create(&reading).Error; err != nil {
			return fmt.Errorf("failed to store reading for machine %d: %w", machine.ID, err)
		}

		if r.Apply {
			if err := tx.Model(&machine).Updates(map[string]any{
				"current_operating_hours":    r.Recorded,
				"operating_hours_updated_at": at,
			}).Error; err != nil {
				return fmt.Errorf("failed to update machine %d: %w", machine.ID, err)
			}
			machine.CurrentOperatingHours = r.Recorded
			machine.OperatingHoursUpdatedAt = &at
		}

		plans, err := refreshHoursStatus(tx, &machine, at)
		if err != nil {
			return err
		}

		out = ReadingResult{Reading: reading, Machine: machine, Plans: plans}
		return nil
	})
	if err != nil {
		if errors.Is(err, hours.ErrDecrease) {
			s.metrics.RecordHoursReading("rejected")
		}
		return nil, err
	}

	if out.Reading.Anomaly {
		s.metrics.RecordHoursReading("anomaly")
		s.log.Warn("operating hours anomaly",
			zap.Int64("machine_id", in.MachineID),
			zap.Float64("recorded", in.Hours),
			zap.Float64("current", out.Reading.PreviousHours),
			zap.String("note", out.Reading.AnomalyNote))
	} else {
		s.metrics.RecordHoursReading("applied")
	}
	return &out, nil
}

// refreshHoursStatus recomputes the cached hours status of every active hours-based plan
// of the machine.
func refreshHoursStatus(tx *gorm.DB, machine *model.Machine, at time.Time) ([]PlanStatus, error) {
	var plans []model.MaintenancePlan
	if err := tx.Where("machine_id = ? AND is_active = ? AND interval_hours IS NOT NULL", machine.ID, true).
		Order("id").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to load plans of machine %d: %w", machine.ID, err)
	}

	out := make([]PlanStatus, 0, len(plans))
	for i := range plans {
		p := &plans[i]
		ps, err := planStatus(p, machine, at)
		if err != nil {
			return nil, err
		}
		status := due.OK
		if ps.Hours != nil {
			status = *ps.Hours
		}
		if err := tx.Model(p).Updates(map[string]any{
			"hours_status":        status.String(),
			"status_evaluated_at": at,
		}).Error; err != nil {
			return nil, fmt.Errorf("failed to update status of plan %d: %w", p.ID, err)
		}
		out = append(out, ps)
	}
	return out, nil
}
