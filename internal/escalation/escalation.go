// Package escalation holds the escalation lifecycle rules and the responsibility ladder.
package escalation

import (
	"fmt"
	"sort"

	"maintenance-backend/internal/apperr"
)

// Status is the lifecycle state of an escalation.
type Status string

const (
	Open         Status = "open"
	Acknowledged Status = "acknowledged"
	Resolved     Status = "resolved"
	Closed       Status = "closed"
)

// Escalation levels. Level 1 is the operator tier, 2 the technician/master tier and 3 the
// specialist or external tier.
const (
	MinLevel = 1
	MaxLevel = 3
)

var (
	// ErrIllegalTransition is returned for any transition other than one step forward.
	ErrIllegalTransition = fmt.Errorf("%w: illegal escalation transition", apperr.ErrConflict)
	// ErrTopLevel is returned when raising an escalation that is already at MaxLevel.
	ErrTopLevel = fmt.Errorf("%w: escalation is already at the top level", apperr.ErrConflict)
)

var order = map[Status]int{Open: 0, Acknowledged: 1, Resolved: 2, Closed: 3}

// ParseStatus validates a stored status value.
func ParseStatus(s string) (Status, error) {
	if _, ok := order[Status(s)]; !ok {
		return "", apperr.Validation("unknown escalation status %q", s)
	}
	return Status(s), nil
}

// Settled reports whether the escalation no longer blocks anything.
func (s Status) Settled() bool {
	return s == Resolved || s == Closed
}

// Transition validates a move from the stored status to the requested one. Only the next
// state in open -> acknowledged -> resolved -> closed is allowed.
func Transition(from, to Status) error {
	f, okFrom := order[from]
	t, okTo := order[to]
	if !okFrom || !okTo || t != f+1 {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// NextLevel is the first escalation tier strictly above the originator's skill level,
// capped at MaxLevel. Helpers (skill 0) escalate to level 1.
func NextLevel(originatorSkill int) int {
	level := originatorSkill + 1
	if level < MinLevel {
		level = MinLevel
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return level
}

// Raise returns the level above current, or ErrTopLevel.
func Raise(current int) (int, error) {
	if current >= MaxLevel {
		return current, ErrTopLevel
	}
	if current < MinLevel {
		return MinLevel, nil
	}
	return current + 1, nil
}

// Candidate is a user that may receive an escalation.
type Candidate struct {
	UserID        int64
	SkillLevel    int
	PriorityOrder int
	// OpenEscalations counts escalations routed to the user that are not settled yet.
	OpenEscalations int
}

// Route picks the recipient for an escalation at level: a candidate whose skill equals the
// level, with the fewest unsettled escalations, then the lowest priority order, then the
// lowest ID. It returns false when nobody matches; the escalation then stays unassigned.
func Route(level int, candidates []Candidate) (int64, bool) {
	var matching []Candidate
	for _, c := range candidates {
		if c.SkillLevel == level {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return 0, false
	}
	sort.Slice(matching, func(i, j int) bool {
		a, b := matching[i], matching[j]
		if a.OpenEscalations != b.OpenEscalations {
			return a.OpenEscalations < b.OpenEscalations
		}
		if a.PriorityOrder != b.PriorityOrder {
			return a.PriorityOrder < b.PriorityOrder
		}
		return a.UserID < b.UserID
	})
	return matching[0].UserID, true
}
