package due

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"

	"maintenance-backend/internal/apperr"
)

const (
	// DueSoonWindow is how far ahead the time clock reports due_soon.
	DueSoonWindow = 7 * 24 * time.Hour
	// HoursMargin is how close to next_due_hours the hours clock reports due_soon.
	// It is deliberately a constant rather than a per-plan setting.
	HoursMargin = 50.0
)

// Status is the due state of one clock. Larger values are worse.
type Status int

const (
	OK Status = iota
	DueSoon
	DueToday
	Overdue
)

var statusNames = [...]string{"ok", "due_soon", "due_today", "overdue"}

func (s Status) String() string {
	if s < OK || s > Overdue {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	if s < OK || s > Overdue {
		return nil, fmt.Errorf("invalid due status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus maps a status name back to a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return OK, apperr.Validation("unknown due status %q", name)
}

// Worst returns the more urgent of two statuses.
func Worst(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// TimeStatus classifies a calendar due instant relative to at.
// due_today means due before the end of at's calendar day, in at's location.
func TimeStatus(dueAt, at time.Time) Status {
	switch {
	case dueAt.Before(at):
		return Overdue
	case !dueAt.After(now.With(at).EndOfDay()):
		return DueToday
	case !dueAt.After(at.Add(DueSoonWindow)):
		return DueSoon
	default:
		return OK
	}
}

// HoursStatus classifies the hours clock. It never reports due_today.
func HoursStatus(dueHours, currentHours float64) Status {
	switch {
	case currentHours >= dueHours:
		return Overdue
	case dueHours-currentHours <= HoursMargin:
		return DueSoon
	default:
		return OK
	}
}
