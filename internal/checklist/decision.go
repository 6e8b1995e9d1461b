package checklist

import (
	"fmt"
	"math"
	"strings"

	"maintenance-backend/internal/apperr"
	"maintenance-backend/internal/parse"
)

// Kind names a decision variant as stored in decision_type.
type Kind string

const (
	KindNone          Kind = "none"
	KindYesNo         Kind = "yes_no"
	KindMeasurement   Kind = "measurement"
	KindPhotoRequired Kind = "photo_required"
)

// Action is what happens after an item fails.
type Action string

const (
	Continue Action = "continue"
	Escalate Action = "escalate"
	Stop     Action = "stop"
)

// ParseAction validates an on_failure_action value. Empty means Continue.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "", Continue:
		return Continue, nil
	case Escalate, Stop:
		return Action(s), nil
	}
	return "", apperr.Validation("unknown on_failure_action %q", s)
}

var (
	// ErrMissingAnswer is returned when an item that needs an answer has none.
	ErrMissingAnswer = fmt.Errorf("%w: answer required", apperr.ErrValidation)
	// ErrMalformedAnswer is returned for answers that cannot be read for the item's decision type.
	ErrMalformedAnswer = fmt.Errorf("%w: malformed answer", apperr.ErrValidation)
)

// Decision is one of NoDecision, YesNo, Measurement or PhotoRequired.
type Decision interface {
	Kind() Kind
	check(a Answer, answered bool) (bool, Answer, error)
}

// NoDecision items are informational and always pass.
type NoDecision struct{}

// YesNo items pass when the answer equals Expected.
type YesNo struct {
	Expected bool
}

// Measurement items pass when the measured value lies inside Band.
type Measurement struct {
	Band Tolerance
}

// PhotoRequired items pass when a photo reference is attached.
type PhotoRequired struct{}

func (NoDecision) Kind() Kind    { return KindNone }
func (YesNo) Kind() Kind         { return KindYesNo }
func (Measurement) Kind() Kind   { return KindMeasurement }
func (PhotoRequired) Kind() Kind { return KindPhotoRequired }

func (NoDecision) check(Answer, bool) (bool, Answer, error) {
	return true, Answer{}, nil
}

func (d YesNo) check(a Answer, answered bool) (bool, Answer, error) {
	if !answered {
		return false, Answer{}, ErrMissingAnswer
	}
	var v bool
	switch {
	case a.Bool != nil:
		v = *a.Bool
	case strings.TrimSpace(a.Raw) != "":
		parsed, err := parse.ParseBool(a.Raw)
		if err != nil {
			return false, Answer{}, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
		}
		v = parsed
	default:
		return false, Answer{}, ErrMissingAnswer
	}
	return v == d.Expected, Answer{Bool: &v, PhotoRef: a.PhotoRef}, nil
}

func (d Measurement) check(a Answer, answered bool) (bool, Answer, error) {
	if !answered {
		return false, Answer{}, ErrMissingAnswer
	}
	var v float64
	switch {
	case a.Value != nil:
		v = *a.Value
	case strings.TrimSpace(a.Raw) != "":
		m, err := parse.ParseMeasurement(a.Raw)
		if err != nil {
			return false, Answer{}, fmt.Errorf("%w: %v", ErrMalformedAnswer, err)
		}
		if m.Unit != "" && d.Band.Unit != "" && !strings.EqualFold(m.Unit, d.Band.Unit) {
			return false, Answer{}, fmt.Errorf("%w: unit %q, expected %q", ErrMalformedAnswer, m.Unit, d.Band.Unit)
		}
		v = m.Value
	default:
		return false, Answer{}, ErrMissingAnswer
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false, Answer{}, fmt.Errorf("%w: measurement must be finite", ErrMalformedAnswer)
	}
	return d.Band.Contains(v), Answer{Value: &v, PhotoRef: a.PhotoRef}, nil
}

func (PhotoRequired) check(a Answer, _ bool) (bool, Answer, error) {
	ref := strings.TrimSpace(a.PhotoRef)
	return ref != "", Answer{PhotoRef: ref}, nil
}

// Tolerance is a closed band [Min, Max]. An unset side is unbounded.
type Tolerance struct {
	Min  float64
	Max  float64
	Unit string
}

// NewTolerance builds a band from optional bounds. At least one bound is required.
func NewTolerance(min, max *float64, unit string) (Tolerance, error) {
	if min == nil && max == nil {
		return Tolerance{}, apperr.Validation("measurement item needs a tolerance band")
	}
	t := Tolerance{Min: math.Inf(-1), Max: math.Inf(1), Unit: unit}
	if min != nil {
		t.Min = *min
	}
	if max != nil {
		t.Max = *max
	}
	if t.Min > t.Max {
		return Tolerance{}, apperr.Validation("tolerance min %v is above max %v", t.Min, t.Max)
	}
	return t, nil
}

// Contains reports whether v lies inside the band, bounds included.
func (t Tolerance) Contains(v float64) bool {
	return v >= t.Min && v <= t.Max
}

// NewDecision builds the decision variant for a stored checklist item.
func NewDecision(kind string, expected *string, min, max *float64, unit string) (Decision, error) {
	switch Kind(kind) {
	case "", KindNone:
		return NoDecision{}, nil
	case KindYesNo:
		if expected == nil || strings.TrimSpace(*expected) == "" {
			return nil, apperr.Validation("yes_no item needs an expected answer")
		}
		v, err := parse.ParseBool(*expected)
		if err != nil {
			return nil, apperr.Validation("expected answer: %v", err)
		}
		return YesNo{Expected: v}, nil
	case KindMeasurement:
		band, err := NewTolerance(min, max, unit)
		if err != nil {
			return nil, err
		}
		return Measurement{Band: band}, nil
	case KindPhotoRequired:
		return PhotoRequired{}, nil
	}
	return nil, apperr.Validation("unknown decision_type %q", kind)
}
