package scoring

import (
	"context"
	"fmt"
	"sort"

	"github.com/carvesec/carve/pkg/store"
)

// topRanks is how deep the overtake announcements go.
const topRanks = 3

// TeamScore pairs a team with its current score.
type TeamScore struct {
	Team  string
	Score int
}

// Projector computes scores and leaderboards for one competition.
type Projector struct {
	st *store.Store
}

// New creates a projector over a store.
func New(st *store.Store) *Projector {
	return &Projector{st: st}
}

// TeamScore sums ledger cardinality times points over every check and
// flag check.
func (p *Projector) TeamScore(ctx context.Context, team string) (int, error) {
	comp := p.st.Competition()
	teamID := comp.TeamID(team)
	if teamID == 0 {
		return 0, fmt.Errorf("unknown team %q", team)
	}

	total := 0
	for i := range comp.Checks {
		n, err := p.st.LedgerCount(ctx, teamID, comp.Checks[i].Name)
		if err != nil {
			return 0, err
		}
		total += int(n) * comp.Checks[i].Points
	}
	for i := range comp.FlagChecks {
		n, err := p.st.LedgerCount(ctx, teamID, comp.FlagChecks[i].Name)
		if err != nil {
			return 0, err
		}
		total += int(n) * comp.FlagChecks[i].Points
	}
	return total, nil
}

// Leaderboard returns every team ordered best first. Ties keep
// configuration order, so rankings are stable between passes.
func (p *Projector) Leaderboard(ctx context.Context) ([]TeamScore, error) {
	comp := p.st.Competition()
	board := make([]TeamScore, 0, len(comp.Teams))
	for _, team := range comp.Teams {
		score, err := p.TeamScore(ctx, team.Name)
		if err != nil {
			return nil, err
		}
		board = append(board, TeamScore{Team: team.Name, Score: score})
	}
	sort.SliceStable(board, func(i, j int) bool { return board[i].Score > board[j].Score })
	return board, nil
}

// ScoresAtTimes replays a team's score at each of the given timestamps,
// for score-over-time graphs.
func (p *Projector) ScoresAtTimes(ctx context.Context, team string, times []int64) ([]int, error) {
	comp := p.st.Competition()
	teamID := comp.TeamID(team)
	if teamID == 0 {
		return nil, fmt.Errorf("unknown team %q", team)
	}

	scores := make([]int, len(times))
	for ti, ts := range times {
		total := 0
		for i := range comp.Checks {
			n, err := p.st.LedgerCountBefore(ctx, teamID, comp.Checks[i].Name, ts)
			if err != nil {
				return nil, err
			}
			total += int(n) * comp.Checks[i].Points
		}
		for i := range comp.FlagChecks {
			n, err := p.st.LedgerCountBefore(ctx, teamID, comp.FlagChecks[i].Name, ts)
			if err != nil {
				return nil, err
			}
			total += int(n) * comp.FlagChecks[i].Points
		}
		scores[ti] = total
	}
	return scores, nil
}

// UpdateRankings recomputes the leaderboard, announces teams that moved
// up into or within the top ranks, and persists the new order.
func (p *Projector) UpdateRankings(ctx context.Context) ([]TeamScore, error) {
	board, err := p.Leaderboard(ctx)
	if err != nil {
		return nil, err
	}

	previous, err := p.st.LastKnownRankings(ctx)
	if err != nil {
		return nil, err
	}
	prevRank := make(map[string]int, len(previous))
	for i, team := range previous {
		prevRank[team] = i + 1
	}

	order := make([]string, len(board))
	for i, ts := range board {
		order[i] = ts.Team
		rank := i + 1
		if rank > topRanks || len(previous) == 0 {
			continue
		}
		old, known := prevRank[ts.Team]
		if known && old > rank {
			p.st.PublishToast(ctx, store.Toast{
				Title:    "Leaderboard",
				Message:  fmt.Sprintf("%s climbed to rank %d", ts.Team, rank),
				Severity: store.SeverityInfo,
			})
		}
	}

	if err := p.st.SetLastKnownRankings(ctx, order); err != nil {
		return nil, err
	}
	return board, nil
}
