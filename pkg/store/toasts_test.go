package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForNextToast(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan Toast, 1)
	errs := make(chan error, 1)
	go func() {
		toast, err := s.WaitForNextToast(ctx, "alpha", "")
		if err != nil {
			errs <- err
			return
		}
		got <- toast
	}()

	time.Sleep(100 * time.Millisecond)
	s.PublishToast(ctx, Toast{Title: "Heads up", Message: "scheduled downtime", Severity: SeverityWarning, Team: "alpha"})

	select {
	case toast := <-got:
		assert.Equal(t, "Heads up", toast.Title)
		assert.Equal(t, SeverityWarning, toast.Severity)
		assert.Equal(t, "alpha", toast.Team)
		assert.NotEmpty(t, toast.ID)
		assert.NotZero(t, toast.CreatedAt)
	case err := <-errs:
		t.Fatalf("wait failed: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for toast")
	}
}

func TestPublishToastBrokerDown(t *testing.T) {
	s, _, _ := newTestStore(t)
	require.NoError(t, s.Close())

	// Delivery is best-effort: a failed publish is logged, not fatal.
	assert.NotPanics(t, func() {
		s.PublishToast(context.Background(), Toast{Title: "Heads up"})
	})
}

func TestToastChannelSelection(t *testing.T) {
	assert.Equal(t, "carve:toasts", toastChannelFor(Toast{}))
	assert.Equal(t, "carve:toasts:team:alpha", toastChannelFor(Toast{Team: "alpha"}))
	assert.Equal(t, "carve:toasts:user:anna", toastChannelFor(Toast{User: "anna", Team: "alpha"}))
}

func TestAPIKeys(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	key, err := s.GenerateAPIKey(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{32}$`, key)

	ok, err := s.APIKeyExists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, key)

	require.NoError(t, s.RevokeAPIKey(ctx, key))
	ok, err = s.APIKeyExists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.APIKeyExists(ctx, "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRankings(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	teams, err := s.LastKnownRankings(ctx)
	require.NoError(t, err)
	assert.Nil(t, teams)

	require.NoError(t, s.SetLastKnownRankings(ctx, []string{"bravo", "alpha", "charlie"}))
	teams, err = s.LastKnownRankings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "alpha", "charlie"}, teams)
}
