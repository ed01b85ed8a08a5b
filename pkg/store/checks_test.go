package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStateDefault(t *testing.T) {
	s, _, _ := newTestStore(t)

	st, err := s.CheckState(context.Background(), "alpha", "ping_all")
	require.NoError(t, err)
	assert.False(t, st.Success)
	assert.Equal(t, 0, st.Failures)
	assert.Equal(t, []string{"Unsolved"}, st.Messages)
	assert.Equal(t, SuccessFraction{Passed: 0, Total: 0}, st.Fraction)
}

func TestCheckStateRoundTrip(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	want := CheckCurrentState{
		Success:      true,
		Failures:     0,
		Messages:     []string{"web: OK", "db: OK"},
		Fraction:     SuccessFraction{Passed: 2, Total: 2},
		PassingBoxes: []string{"web", "db"},
	}
	require.NoError(t, s.SetCheckState(ctx, "alpha", "ping_all", want))

	got, err := s.CheckState(ctx, "alpha", "ping_all")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	all, err := s.AllCheckStates(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, want, all["ping_all"])
}

func TestLedgerRequiresActiveCompetition(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	// Unstarted: writes are silent no-ops.
	require.NoError(t, s.RecordSuccess(ctx, 1, "ping_all", s.now().Unix(), 1))
	n, err := s.LedgerCount(ctx, 1, "ping_all")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Start(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, 1, "ping_all", s.now().Unix(), 1))
	n, err = s.LedgerCount(ctx, 1, "ping_all")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.End(ctx)
	require.NoError(t, err)
	require.NoError(t, s.RecordSuccess(ctx, 1, "ping_all", s.now().Unix(), 1))
	n, err = s.LedgerCount(ctx, 1, "ping_all")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLedgerCountsAndWindows(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Start(ctx, 0)
	require.NoError(t, err)

	base := s.now().Unix()
	for tick := int64(0); tick < 6; tick++ {
		require.NoError(t, s.RecordSuccess(ctx, 1, "ping_all", base+tick*5, 2))
	}

	n, err := s.LedgerCount(ctx, 1, "ping_all")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	// Only the first three ticks fall inside the window.
	n, err = s.LedgerCountBefore(ctx, 1, "ping_all", base+10)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestLedgerDuplicateTickIsIdempotent(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Start(ctx, 0)
	require.NoError(t, err)

	ts := s.now().Unix()
	require.NoError(t, s.RecordSuccess(ctx, 1, "ping_all", ts, 1))
	require.NoError(t, s.RecordSuccess(ctx, 1, "ping_all", ts, 1))

	n, err := s.LedgerCount(ctx, 1, "ping_all")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
