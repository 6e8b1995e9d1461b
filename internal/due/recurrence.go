package due

import (
	"fmt"
	"math"
	"time"

	"github.com/jinzhu/now"

	"maintenance-backend/internal/apperr"
)

// Unit is the calendar unit of a time interval.
type Unit string

const (
	Day   Unit = "day"
	Week  Unit = "week"
	Month Unit = "month"
	Year  Unit = "year"
)

// Interval is a calendar recurrence such as "every 3 months".
type Interval struct {
	Unit  Unit
	Value int
}

// NewInterval validates a unit/value pair.
func NewInterval(unit string, value int) (Interval, error) {
	switch Unit(unit) {
	case Day, Week, Month, Year:
	default:
		return Interval{}, apperr.Validation("unknown interval type %q", unit)
	}
	if value <= 0 {
		return Interval{}, apperr.Validation("interval value must be positive, got %d", value)
	}
	return Interval{Unit: Unit(unit), Value: value}, nil
}

// After returns t advanced by the interval. Month and year steps keep the day of month
// where possible and otherwise land on the last day of the target month.
func (i Interval) After(t time.Time) time.Time {
	switch i.Unit {
	case Day:
		return t.AddDate(0, 0, i.Value)
	case Week:
		return t.AddDate(0, 0, 7*i.Value)
	case Month:
		return addMonths(t, i.Value)
	case Year:
		return addMonths(t, 12*i.Value)
	}
	return t
}

func (i Interval) String() string {
	return fmt.Sprintf("%d %s", i.Value, i.Unit)
}

func addMonths(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := now.With(first).EndOfMonth().Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return first.AddDate(0, 0, day-1)
}

// ErrNoRecurrence is returned when a plan has neither a time nor an hours interval.
var ErrNoRecurrence = fmt.Errorf("%w: plan needs a time interval, an hours interval or both", apperr.ErrValidation)

// Recurrence is one of TimeOnly, HoursOnly or Both. A plan without any clock cannot be
// represented.
type Recurrence interface {
	timeInterval() (Interval, bool)
	hoursInterval() (float64, bool)
}

// TimeOnly recurs on the calendar clock.
type TimeOnly struct {
	Every Interval
}

// HoursOnly recurs on the machine's operating-hours clock.
type HoursOnly struct {
	EveryHours float64
}

// Both recurs on whichever clock triggers first.
type Both struct {
	Every      Interval
	EveryHours float64
}

func (r TimeOnly) timeInterval() (Interval, bool) { return r.Every, true }
func (r TimeOnly) hoursInterval() (float64, bool) { return 0, false }

func (r HoursOnly) timeInterval() (Interval, bool) { return Interval{}, false }
func (r HoursOnly) hoursInterval() (float64, bool) { return r.EveryHours, true }

func (r Both) timeInterval() (Interval, bool) { return r.Every, true }
func (r Both) hoursInterval() (float64, bool) { return r.EveryHours, true }

// NewRecurrence builds the recurrence from the optional clocks of a stored plan.
func NewRecurrence(every *Interval, everyHours *float64) (Recurrence, error) {
	if everyHours != nil {
		h := *everyHours
		if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
			return nil, apperr.Validation("hours interval must be positive, got %v", h)
		}
	}
	switch {
	case every != nil && everyHours != nil:
		return Both{Every: *every, EveryHours: *everyHours}, nil
	case every != nil:
		return TimeOnly{Every: *every}, nil
	case everyHours != nil:
		return HoursOnly{EveryHours: *everyHours}, nil
	}
	return nil, ErrNoRecurrence
}
