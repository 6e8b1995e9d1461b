package hours

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenance-backend/internal/apperr"
)

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		name      string
		previous  float64
		recorded  float64
		policy    Policy
		expected  Reading
		expectErr error
	}{
		{
			name:     "Increase applies",
			previous: 980, recorded: 1005, policy: PolicyReject,
			expected: Reading{Previous: 980, Recorded: 1005, Delta: 25, Apply: true},
		},
		{
			name:     "Unchanged counter is fine",
			previous: 10, recorded: 10, policy: PolicyReject,
			expected: Reading{Previous: 10, Recorded: 10, Delta: 0, Apply: true},
		},
		{
			name:     "Decrease rejected by default",
			previous: 100, recorded: 90, policy: PolicyReject,
			expectErr: ErrDecrease,
		},
		{
			name:     "Decrease flagged",
			previous: 100, recorded: 90, policy: PolicyFlag,
			expected: Reading{Previous: 100, Recorded: 90, Delta: -10, Apply: false, Anomaly: true,
				AnomalyNote: "reading 90.0 is below current counter 100.0"},
		},
		{
			name:     "Decrease clamped",
			previous: 100, recorded: 90, policy: PolicyClamp,
			expected: Reading{Previous: 100, Recorded: 100, Delta: 0, Apply: false, Anomaly: true,
				AnomalyNote: "reading 90.0 is below current counter 100.0; clamped"},
		},
		{
			name:     "Negative reading",
			previous: 0, recorded: -1, policy: PolicyFlag,
			expectErr: ErrInvalidHours,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Evaluate(tc.previous, tc.recorded, tc.policy)
			if tc.expectErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectErr))
				assert.True(t, errors.Is(err, apperr.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, r)
		})
	}

	_, err := Evaluate(0, math.NaN(), PolicyReject)
	assert.ErrorIs(t, err, ErrInvalidHours)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, p)

	p, err = ParsePolicy("clamp")
	require.NoError(t, err)
	assert.Equal(t, PolicyClamp, p)

	_, err = ParsePolicy("ignore")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
