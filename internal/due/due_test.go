package due

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-backend/internal/apperr"
)

func ptr[T any](v T) *T { return &v }

var ref = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestTimeStatus(t *testing.T) {
	testCases := []struct {
		name     string
		dueAt    time.Time
		expected Status
	}{
		{name: "Past instant is overdue", dueAt: ref.Add(-time.Minute), expected: Overdue},
		{name: "Exactly now is due today", dueAt: ref, expected: DueToday},
		{name: "Later today", dueAt: time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC), expected: DueToday},
		{name: "Tomorrow morning", dueAt: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), expected: DueSoon},
		{name: "Edge of the 7 day window", dueAt: ref.Add(DueSoonWindow), expected: DueSoon},
		{name: "Beyond the window", dueAt: ref.Add(DueSoonWindow + time.Second), expected: OK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, TimeStatus(tc.dueAt, ref))
		})
	}
}

func TestTimeStatus_UsesCalendarDayOfLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	at := time.Date(2026, 3, 10, 22, 0, 0, 0, berlin)
	// 23:30 Berlin is still today there, although it is the same instant as 22:30 UTC.
	assert.Equal(t, DueToday, TimeStatus(time.Date(2026, 3, 10, 23, 30, 0, 0, berlin), at))
	assert.Equal(t, DueSoon, TimeStatus(time.Date(2026, 3, 11, 0, 30, 0, 0, berlin), at))
}

func TestHoursStatus(t *testing.T) {
	assert.Equal(t, OK, HoursStatus(1000, 900))
	assert.Equal(t, DueSoon, HoursStatus(1000, 950))
	assert.Equal(t, DueSoon, HoursStatus(1000, 980))
	assert.Equal(t, Overdue, HoursStatus(1000, 1000))
	assert.Equal(t, Overdue, HoursStatus(1000, 1005))
}

func TestNewRecurrence(t *testing.T) {
	every := Interval{Unit: Month, Value: 1}

	r, err := NewRecurrence(&every, nil)
	require.NoError(t, err)
	assert.Equal(t, TimeOnly{Every: every}, r)

	r, err = NewRecurrence(nil, ptr(500.0))
	require.NoError(t, err)
	assert.Equal(t, HoursOnly{EveryHours: 500}, r)

	r, err = NewRecurrence(&every, ptr(500.0))
	require.NoError(t, err)
	assert.Equal(t, Both{Every: every, EveryHours: 500}, r)

	_, err = NewRecurrence(nil, nil)
	assert.ErrorIs(t, err, ErrNoRecurrence)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = NewRecurrence(nil, ptr(0.0))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNewInterval(t *testing.T) {
	i, err := NewInterval("week", 2)
	require.NoError(t, err)
	assert.Equal(t, Interval{Unit: Week, Value: 2}, i)

	_, err = NewInterval("fortnight", 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = NewInterval("day", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestInterval_After(t *testing.T) {
	jan31 := time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC), Interval{Day, 3}.After(jan31))
	assert.Equal(t, time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC), Interval{Week, 2}.After(jan31))
	assert.Equal(t, time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC), Interval{Month, 1}.After(jan31))
	assert.Equal(t, time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC), Interval{Month, 2}.After(jan31))
	assert.Equal(t, time.Date(2029, 2, 28, 8, 0, 0, 0, time.UTC),
		Interval{Year, 1}.After(time.Date(2028, 2, 29, 8, 0, 0, 0, time.UTC)))
}

func TestEvaluate_TimeOnlyIgnoresHours(t *testing.T) {
	s := Schedule{
		Recurrence: TimeOnly{Every: Interval{Unit: Week, Value: 1}},
		// A stale hours marker must not matter for a time-only plan.
		Markers: Markers{NextDueAt: ptr(ref.Add(48 * time.Hour)), NextDueHours: ptr(10.0)},
	}

	e := Evaluate(s, ref, 99999)
	require.NotNil(t, e.Time)
	assert.Nil(t, e.Hours)
	assert.Equal(t, DueSoon, *e.Time)
	assert.Equal(t, DueSoon, e.Combined)

	s.NextDueAt = ptr(ref.Add(-time.Second))
	assert.Equal(t, Overdue, Evaluate(s, ref, 0).Combined)
}

func TestEvaluate_BothUsesOrSemantics(t *testing.T) {
	base := Schedule{Recurrence: Both{Every: Interval{Unit: Month, Value: 3}, EveryHours: 1000}}

	testCases := []struct {
		name         string
		nextDueAt    time.Time
		currentHours float64
		expected     Status
		timeStatus   Status
		hoursStatus  Status
	}{
		{name: "Neither clock due", nextDueAt: ref.AddDate(0, 1, 0), currentHours: 100,
			expected: OK, timeStatus: OK, hoursStatus: OK},
		{name: "Only time clock overdue", nextDueAt: ref.Add(-time.Hour), currentHours: 100,
			expected: Overdue, timeStatus: Overdue, hoursStatus: OK},
		{name: "Only hours clock overdue", nextDueAt: ref.AddDate(0, 1, 0), currentHours: 1001,
			expected: Overdue, timeStatus: OK, hoursStatus: Overdue},
		{name: "Hours due soon, time due today", nextDueAt: ref.Add(time.Hour), currentHours: 990,
			expected: DueToday, timeStatus: DueToday, hoursStatus: DueSoon},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := base
			s.NextDueAt = ptr(tc.nextDueAt)
			s.NextDueHours = ptr(1000.0)

			e := Evaluate(s, ref, tc.currentHours)
			require.NotNil(t, e.Time)
			require.NotNil(t, e.Hours)
			assert.Equal(t, tc.timeStatus, *e.Time)
			assert.Equal(t, tc.hoursStatus, *e.Hours)
			assert.Equal(t, tc.expected, e.Combined)
		})
	}
}

func TestEvaluate_HoursScenario(t *testing.T) {
	s := Schedule{
		Recurrence: HoursOnly{EveryHours: 1000},
		Markers:    Markers{NextDueHours: ptr(1000.0)},
	}

	e := Evaluate(s, ref, 980)
	assert.Nil(t, e.Time)
	require.NotNil(t, e.Hours)
	assert.Equal(t, DueSoon, *e.Hours)

	assert.Equal(t, Overdue, Evaluate(s, ref, 1005).Combined)
}

func TestSchedule_DerivedMarkers(t *testing.T) {
	s := Schedule{Recurrence: Both{Every: Interval{Unit: Day, Value: 7}, EveryHours: 250}}

	dueAt, ok := s.DueAt(ref)
	require.True(t, ok)
	assert.Equal(t, ref, dueAt, "never completed plans are due immediately")
	dueHours, ok := s.DueHours()
	require.True(t, ok)
	assert.Equal(t, 250.0, dueHours)

	s.LastCompletedAt = ptr(ref.AddDate(0, 0, -3))
	s.LastCompletedHours = ptr(400.0)
	dueAt, _ = s.DueAt(ref)
	assert.Equal(t, ref.AddDate(0, 0, 4), dueAt)
	dueHours, _ = s.DueHours()
	assert.Equal(t, 650.0, dueHours)
}

func TestDueWithin(t *testing.T) {
	window := 24 * time.Hour

	timeOnly := Schedule{Recurrence: TimeOnly{Every: Interval{Unit: Week, Value: 1}},
		Markers: Markers{NextDueAt: ptr(ref.Add(20 * time.Hour))}}
	trig := DueWithin(timeOnly, ref, window, 0)
	assert.True(t, trig.Due())
	assert.True(t, trig.Time)
	assert.False(t, trig.Hours)
	assert.Equal(t, ref.Add(20*time.Hour), trig.DueAt)

	timeOnly.NextDueAt = ptr(ref.Add(30 * time.Hour))
	assert.False(t, DueWithin(timeOnly, ref, window, 0).Due())

	hoursOnly := Schedule{Recurrence: HoursOnly{EveryHours: 1000}, Markers: Markers{NextDueHours: ptr(1000.0)}}
	assert.False(t, DueWithin(hoursOnly, ref, window, 900).Due())
	trig = DueWithin(hoursOnly, ref, window, 960)
	assert.True(t, trig.Hours)
	assert.Equal(t, ref, trig.DueAt)
}

func TestAdvance_ClocksMoveIndependently(t *testing.T) {
	s := Schedule{
		Recurrence: Both{Every: Interval{Unit: Month, Value: 1}, EveryHours: 500},
		Markers: Markers{
			LastCompletedAt:    ptr(ref.AddDate(0, -2, 0)),
			LastCompletedHours: ptr(100.0),
			NextDueAt:          ptr(ref.AddDate(0, -1, 0)),
			NextDueHours:       ptr(600.0),
		},
	}

	m := Advance(s, ref, 420)
	assert.Equal(t, ref, *m.LastCompletedAt)
	assert.Equal(t, ref.AddDate(0, 1, 0), *m.NextDueAt)
	assert.Equal(t, 420.0, *m.LastCompletedHours)
	assert.Equal(t, 920.0, *m.NextDueHours)

	hoursOnly := Schedule{Recurrence: HoursOnly{EveryHours: 500}}
	m = Advance(hoursOnly, ref, 1000)
	assert.Nil(t, m.NextDueAt)
	assert.Nil(t, m.LastCompletedAt)
	assert.Equal(t, 1500.0, *m.NextDueHours)
}

func TestStatus_JSON(t *testing.T) {
	b, err := json.Marshal(Evaluation{Time: ptr(DueToday), Combined: Overdue})
	require.NoError(t, err)
	assert.JSONEq(t, `{"time_status":"due_today","status":"overdue"}`, string(b))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"due_soon"`), &s))
	assert.Equal(t, DueSoon, s)
	assert.Error(t, json.Unmarshal([]byte(`"later"`), &s))
}
