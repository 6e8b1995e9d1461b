package escalation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-backend/internal/apperr"
)

func TestTransition(t *testing.T) {
	all := []Status{Open, Acknowledged, Resolved, Closed}
	allowed := map[[2]Status]bool{
		{Open, Acknowledged}:     true,
		{Acknowledged, Resolved}: true,
		{Resolved, Closed}:       true,
	}

	for _, from := range all {
		for _, to := range all {
			err := Transition(from, to)
			if allowed[[2]Status{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, ErrIllegalTransition, "%s -> %s", from, to)
				assert.ErrorIs(t, err, apperr.ErrConflict)
			}
		}
	}

	assert.Error(t, Transition("reopened", Open))
}

func TestSettled(t *testing.T) {
	assert.False(t, Open.Settled())
	assert.False(t, Acknowledged.Settled())
	assert.True(t, Resolved.Settled())
	assert.True(t, Closed.Settled())
}

func TestNextLevel(t *testing.T) {
	testCases := []struct {
		skill    int
		expected int
	}{
		{skill: -1, expected: 1},
		{skill: 0, expected: 1},
		{skill: 1, expected: 2},
		{skill: 2, expected: 3},
		{skill: 3, expected: 3},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, NextLevel(tc.skill), "skill %d", tc.skill)
	}
}

func TestRaise(t *testing.T) {
	level, err := Raise(1)
	require.NoError(t, err)
	assert.Equal(t, 2, level)

	_, err = Raise(3)
	assert.ErrorIs(t, err, ErrTopLevel)
}

func TestRoute(t *testing.T) {
	candidates := []Candidate{
		{UserID: 1, SkillLevel: 1},
		{UserID: 4, SkillLevel: 2, PriorityOrder: 2, OpenEscalations: 0},
		{UserID: 3, SkillLevel: 2, PriorityOrder: 1, OpenEscalations: 1},
		{UserID: 2, SkillLevel: 2, PriorityOrder: 2, OpenEscalations: 0},
	}

	id, ok := Route(2, candidates)
	require.True(t, ok)
	assert.Equal(t, int64(2), id, "fewest open escalations, then priority order, then id")

	id, ok = Route(1, candidates)
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	_, ok = Route(3, candidates)
	assert.False(t, ok)
}
