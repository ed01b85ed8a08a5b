package scoring

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carvesec/carve/pkg/config"
	"github.com/carvesec/carve/pkg/log"
	"github.com/carvesec/carve/pkg/store"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

func newTestProjector(t *testing.T) (*Projector, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	comp := &config.Competition{
		Name: "compA",
		Teams: []config.Team{
			{Name: "alpha"},
			{Name: "bravo"},
			{Name: "charlie"},
		},
		Checks: []config.Check{
			{Name: "ping_all", Interval: 5, Points: 10},
			{Name: "web_http", Interval: 30, Points: 25},
		},
		FlagChecks: []config.FlagCheck{
			{Name: "crown_jewel", Points: 100},
		},
	}
	st := store.NewWithClient(comp, rdb)
	return New(st), st
}

func seedLedger(t *testing.T, st *store.Store, teamID int, check string, base int64, ticks int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < ticks; i++ {
		require.NoError(t, st.RecordSuccess(ctx, teamID, check, base+int64(i)*5, 1))
	}
}

func TestTeamScore(t *testing.T) {
	p, st := newTestProjector(t)
	ctx := context.Background()

	_, err := st.Start(ctx, 0)
	require.NoError(t, err)

	base := time.Now().Unix()
	seedLedger(t, st, 1, "ping_all", base, 6)
	seedLedger(t, st, 1, "web_http", base, 2)
	require.NoError(t, st.RecordSuccess(ctx, 1, "crown_jewel", base, 1))

	score, err := p.TeamScore(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 6*10+2*25+100, score)

	score, err = p.TeamScore(ctx, "bravo")
	require.NoError(t, err)
	assert.Zero(t, score)

	_, err = p.TeamScore(ctx, "nosuch")
	assert.Error(t, err)
}

func TestLeaderboard(t *testing.T) {
	p, st := newTestProjector(t)
	ctx := context.Background()

	_, err := st.Start(ctx, 0)
	require.NoError(t, err)

	base := time.Now().Unix()
	seedLedger(t, st, 2, "ping_all", base, 5)
	seedLedger(t, st, 3, "ping_all", base, 2)

	board, err := p.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, TeamScore{Team: "bravo", Score: 50}, board[0])
	assert.Equal(t, TeamScore{Team: "charlie", Score: 20}, board[1])
	assert.Equal(t, TeamScore{Team: "alpha", Score: 0}, board[2])
}

func TestLeaderboardTiesKeepConfigOrder(t *testing.T) {
	p, st := newTestProjector(t)
	ctx := context.Background()

	_, err := st.Start(ctx, 0)
	require.NoError(t, err)

	board, err := p.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alpha", board[0].Team)
	assert.Equal(t, "bravo", board[1].Team)
	assert.Equal(t, "charlie", board[2].Team)
}

func TestScoresAtTimes(t *testing.T) {
	p, st := newTestProjector(t)
	ctx := context.Background()

	_, err := st.Start(ctx, 0)
	require.NoError(t, err)

	base := int64(1_700_000_000)
	seedLedger(t, st, 1, "ping_all", base, 6) // ticks at base, +5 ... +25

	scores, err := p.ScoresAtTimes(ctx, "alpha", []int64{base - 1, base, base + 10, base + 100})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 30, 60}, scores)
}

func TestUpdateRankingsPersistsOrder(t *testing.T) {
	p, st := newTestProjector(t)
	ctx := context.Background()

	_, err := st.Start(ctx, 0)
	require.NoError(t, err)

	base := time.Now().Unix()
	seedLedger(t, st, 2, "ping_all", base, 3)

	board, err := p.UpdateRankings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bravo", board[0].Team)

	order, err := st.LastKnownRankings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo", "alpha", "charlie"}, order)

	// A later pass with a new leader persists the new order.
	seedLedger(t, st, 3, "ping_all", base+100, 6)
	_, err = p.UpdateRankings(ctx)
	require.NoError(t, err)

	order, err = st.LastKnownRankings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "charlie", order[0])
}
