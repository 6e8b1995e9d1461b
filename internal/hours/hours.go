// Package hours implements the operating-hours tracker rules: reading deltas and the
// handling of counters that go backwards.
package hours

import (
	"fmt"
	"math"

	"maintenance-backend/internal/apperr"
)

// Policy decides what happens to a reading lower than the machine's current counter.
type Policy string

const (
	// PolicyReject refuses the reading. This is the default.
	PolicyReject Policy = "reject"
	// PolicyFlag logs the reading as an anomaly and leaves the machine counter untouched.
	PolicyFlag Policy = "flag"
	// PolicyClamp logs the reading as an anomaly with a zero delta, clamped to the current counter.
	PolicyClamp Policy = "clamp"
)

var (
	// ErrDecrease is returned under PolicyReject for a decreasing reading.
	ErrDecrease = fmt.Errorf("%w: operating hours must not decrease", apperr.ErrValidation)
	// ErrInvalidHours is returned for negative or non-finite readings.
	ErrInvalidHours = fmt.Errorf("%w: operating hours must be a finite non-negative number", apperr.ErrValidation)
)

// ParsePolicy maps a configuration value to a Policy. Empty means PolicyReject.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyFlag, PolicyClamp:
		return Policy(s), nil
	}
	return "", apperr.Validation("unknown hours decrease policy %q", s)
}

// Reading is the evaluated form of a new counter value.
type Reading struct {
	Previous float64
	Recorded float64
	Delta    float64
	// Apply is false when the machine counter must not move to Recorded.
	Apply       bool
	Anomaly     bool
	AnomalyNote string
}

// Evaluate computes the delta for a reading and applies the decrease policy.
func Evaluate(previous, recorded float64, policy Policy) (Reading, error) {
	if math.IsNaN(recorded) || math.IsInf(recorded, 0) || recorded < 0 {
		return Reading{}, ErrInvalidHours
	}

	r := Reading{Previous: previous, Recorded: recorded, Delta: recorded - previous, Apply: true}
	if recorded >= previous {
		return r, nil
	}

	note := fmt.Sprintf("reading %.1f is below current counter %.1f", recorded, previous)
	switch policy {
	case PolicyFlag:
		r.Apply = false
		r.Anomaly = true
		r.AnomalyNote = note
	case PolicyClamp:
		r.Recorded = previous
		r.Delta = 0
		r.Apply = false
		r.Anomaly = true
		r.AnomalyNote = note + "; clamped"
	default:
		return Reading{}, fmt.Errorf("%w (%s)", ErrDecrease, note)
	}
	return r, nil
}
