package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFlagFormat(t *testing.T) {
	s, _, _ := newTestStore(t)

	flag, err := s.GenerateFlag(context.Background(), "alpha", "crown_jewel")
	require.NoError(t, err)
	assert.Regexp(t, `^compA\{[a-z0-9]{8}\}$`, flag)
}

func TestRedeemFlagOnce(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Start(ctx, 0)
	require.NoError(t, err)

	flag, err := s.GenerateFlag(ctx, "alpha", "crown_jewel")
	require.NoError(t, err)

	ok, err := s.RedeemFlag(ctx, "alpha", "crown_jewel", flag)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.LedgerCount(ctx, 1, "crown_jewel")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	st, err := s.CheckState(ctx, "alpha", "crown_jewel")
	require.NoError(t, err)
	assert.True(t, st.Success)

	// Second redemption of the same flag fails with no ledger growth.
	ok, err = s.RedeemFlag(ctx, "alpha", "crown_jewel", flag)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err = s.LedgerCount(ctx, 1, "crown_jewel")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedeemWrongFlag(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Start(ctx, 0)
	require.NoError(t, err)

	_, err = s.GenerateFlag(ctx, "alpha", "crown_jewel")
	require.NoError(t, err)

	ok, err := s.RedeemFlag(ctx, "alpha", "crown_jewel", "compA{wrongwro}")
	require.NoError(t, err)
	assert.False(t, ok)

	// A flag generated for one team does not redeem for another.
	flag, err := s.GenerateFlag(ctx, "alpha", "crown_jewel")
	require.NoError(t, err)
	ok, err = s.RedeemFlag(ctx, "bravo", "crown_jewel", flag)
	require.NoError(t, err)
	assert.False(t, ok)
}
