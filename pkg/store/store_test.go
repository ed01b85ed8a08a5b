package store

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/carvesec/carve/pkg/config"
	"github.com/carvesec/carve/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

func testCompetition() *config.Competition {
	return &config.Competition{
		Name:            "compA",
		RestoreCooldown: 3,
		Teams: []config.Team{
			{Name: "alpha"},
			{Name: "bravo"},
			{Name: "charlie"},
		},
		Boxes: []config.Box{
			{Name: "web", Labels: map[string]string{"tier": "web"}},
			{Name: "db", Labels: map[string]string{"tier": "db"}},
		},
		Checks: []config.Check{
			{Name: "ping_all", Interval: 5, Points: 10},
		},
		FlagChecks: []config.FlagCheck{
			{Name: "crown_jewel", Points: 100, BoxName: "db"},
		},
	}
}

// newTestStore wires a store to an in-process broker with a controllable
// clock.
func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	s := NewWithClient(testCompetition(), rdb)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, mr, &now
}

// newLiveStore connects to a real broker for behavior the in-process
// one does not emulate, such as per-field hash TTLs. Set
// CARVE_TEST_REDIS to a redis address to enable; database 15 is flushed
// on entry and exit.
func newLiveStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("CARVE_TEST_REDIS")
	if addr == "" {
		t.Skip("CARVE_TEST_REDIS not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, rdb.FlushDB(ctx).Err())
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return NewWithClient(testCompetition(), rdb)
}
