package due

import "time"

// Markers are the last-completed and next-due markers of both clocks.
type Markers struct {
	LastCompletedAt    *time.Time
	LastCompletedHours *float64
	NextDueAt          *time.Time
	NextDueHours       *float64
}

// Schedule is a plan's recurrence together with its markers.
type Schedule struct {
	Recurrence Recurrence
	Markers
}

// DueAt returns the time clock's due instant, or false if the plan has no time clock.
// A plan that was never completed and has no stored marker is due at at.
func (s Schedule) DueAt(at time.Time) (time.Time, bool) {
	if s.Recurrence == nil {
		return time.Time{}, false
	}
	every, ok := s.Recurrence.timeInterval()
	if !ok {
		return time.Time{}, false
	}
	switch {
	case s.NextDueAt != nil:
		return *s.NextDueAt, true
	case s.LastCompletedAt != nil:
		return every.After(*s.LastCompletedAt), true
	}
	return at, true
}

// DueHours returns the hours clock's due counter value, or false if the plan has no hours clock.
func (s Schedule) DueHours() (float64, bool) {
	if s.Recurrence == nil {
		return 0, false
	}
	every, ok := s.Recurrence.hoursInterval()
	if !ok {
		return 0, false
	}
	switch {
	case s.NextDueHours != nil:
		return *s.NextDueHours, true
	case s.LastCompletedHours != nil:
		return *s.LastCompletedHours + every, true
	}
	return every, true
}

// Evaluation holds the per-clock statuses and their combination.
type Evaluation struct {
	Time     *Status `json:"time_status,omitempty"`
	Hours    *Status `json:"hours_status,omitempty"`
	Combined Status  `json:"status"`
}

// Evaluate computes the status of every clock the plan has. The combined status is the
// worst of them, so a plan with both clocks is overdue when either one is.
func Evaluate(s Schedule, at time.Time, currentHours float64) Evaluation {
	var e Evaluation
	if dueAt, ok := s.DueAt(at); ok {
		st := TimeStatus(dueAt, at)
		e.Time = &st
		e.Combined = Worst(e.Combined, st)
	}
	if dueHours, ok := s.DueHours(); ok {
		st := HoursStatus(dueHours, currentHours)
		e.Hours = &st
		e.Combined = Worst(e.Combined, st)
	}
	return e
}

// Trigger says which clocks make a plan due inside a generation window.
type Trigger struct {
	Time  bool
	Hours bool
	// DueAt is the time clock's due instant when Time is set, otherwise the evaluation instant.
	DueAt time.Time
}

// Due reports whether any clock triggered.
func (t Trigger) Due() bool {
	return t.Time || t.Hours
}

// DueWithin decides whether a plan is due within window from at. The time clock triggers
// when its due instant is not later than at+window. The hours clock has no notion of
// calendar time; it triggers once it is within HoursMargin of its due counter.
func DueWithin(s Schedule, at time.Time, window time.Duration, currentHours float64) Trigger {
	var t Trigger
	if dueAt, ok := s.DueAt(at); ok && !dueAt.After(at.Add(window)) {
		t.Time = true
		t.DueAt = dueAt
	}
	if dueHours, ok := s.DueHours(); ok && HoursStatus(dueHours, currentHours) >= DueSoon {
		t.Hours = true
		if !t.Time {
			t.DueAt = at
		}
	}
	return t
}

// Advance recalculates the markers after a completion. Each clock moves forward from its
// own completion marker, independently of the other.
func Advance(s Schedule, completedAt time.Time, hoursAtCompletion float64) Markers {
	m := s.Markers
	if s.Recurrence == nil {
		return m
	}
	if every, ok := s.Recurrence.timeInterval(); ok {
		last := completedAt
		next := every.After(completedAt)
		m.LastCompletedAt = &last
		m.NextDueAt = &next
	}
	if every, ok := s.Recurrence.hoursInterval(); ok {
		last := hoursAtCompletion
		next := hoursAtCompletion + every
		m.LastCompletedHours = &last
		m.NextDueHours = &next
	}
	return m
}
