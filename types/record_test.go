package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed} {
		require.True(t, s.Valid(), "status %q", s)
	}
	require.False(t, Status("done").Valid())
	require.False(t, Status("").Valid())
}

func TestStatusTerminal(t *testing.T) {
	require.False(t, StatusPending.Terminal())
	require.False(t, StatusInProgress.Terminal())
	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusFailed.Terminal())
}

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},

		// Self-transitions are duplicates, not transitions.
		{StatusPending, StatusPending, false},
		{StatusInProgress, StatusInProgress, false},
		{StatusCompleted, StatusCompleted, false},

		// Nothing leaves a terminal state.
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusInProgress, false},
		{StatusFailed, StatusCompleted, false},

		// No regressions.
		{StatusInProgress, StatusPending, false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}
