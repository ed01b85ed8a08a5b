package store

import (
	"context"
	"fmt"
)

func (s *Store) flagKey(team, flagCheck string) string {
	return s.key(team, flagCheck, "flags")
}

// GenerateFlag mints a redeemable flag for (team, flag check) and adds
// it to the pool. Flags look like "compA{x8k2p0qj}".
func (s *Store) GenerateFlag(ctx context.Context, team, flagCheck string) (string, error) {
	flag := fmt.Sprintf("%s{%s}", s.comp.Name, randomString(lowerAlphanumerics, 8))
	if err := s.rdb.SAdd(ctx, s.flagKey(team, flagCheck), flag).Err(); err != nil {
		return "", fmt.Errorf("write flag: %w", err)
	}
	return flag, nil
}

// RedeemFlag atomically consumes a flag from the pool. On success the
// team's ledger grows by one event, the flag check's current state flips
// to solved, and the team is toasted. A wrong or already-consumed flag
// returns false with no side effects.
func (s *Store) RedeemFlag(ctx context.Context, team, flagCheck, flag string) (bool, error) {
	removed, err := s.rdb.SRem(ctx, s.flagKey(team, flagCheck), flag).Result()
	if err != nil {
		return false, fmt.Errorf("redeem flag: %w", err)
	}
	if removed == 0 {
		return false, nil
	}

	teamID := s.comp.TeamID(team)
	if err := s.RecordSuccess(ctx, teamID, flagCheck, s.now().Unix(), 1); err != nil {
		return false, err
	}
	if err := s.SetCheckState(ctx, team, flagCheck, CheckCurrentState{
		Success:  true,
		Messages: []string{"Solved"},
		Fraction: SuccessFraction{Passed: 1, Total: 1},
	}); err != nil {
		return false, err
	}

	s.PublishToast(ctx, Toast{
		Title:    "Flag captured",
		Message:  fmt.Sprintf("%s solved %s", team, flagCheck),
		Severity: SeverityInfo,
		Team:     team,
	})
	return true, nil
}
