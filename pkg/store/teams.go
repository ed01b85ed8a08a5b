package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const joinCodeTTL = 24 * time.Hour

// GenerateJoinCode mints a 9-digit code that redeems to the given team
// for the next 24 hours.
func (s *Store) GenerateJoinCode(ctx context.Context, team string) (string, error) {
	if s.comp.TeamID(team) == 0 {
		return "", fmt.Errorf("unknown team %q: %w", team, ErrNotFound)
	}
	code := randomDigits(9)
	key := s.key("team_join_codes")
	if err := s.rdb.HSet(ctx, key, code, team).Err(); err != nil {
		return "", fmt.Errorf("write join code: %w", err)
	}
	if err := s.rdb.HExpire(ctx, key, joinCodeTTL, code).Err(); err != nil {
		return "", fmt.Errorf("expire join code: %w", err)
	}
	return code, nil
}

// RedeemJoinCode resolves a code to its team name. Expired and unknown
// codes resolve to ErrNotFound.
func (s *Store) RedeemJoinCode(ctx context.Context, code string) (string, error) {
	team, err := s.rdb.HGet(ctx, s.key("team_join_codes"), code).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read join code: %w", err)
	}
	return team, nil
}

// TeamMembers returns the usernames assigned to a team.
func (s *Store) TeamMembers(ctx context.Context, team string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, s.key(team, "users")).Result()
	if err != nil {
		return nil, fmt.Errorf("read team members: %w", err)
	}
	return members, nil
}

// TeamWithLeastMembers returns the emptiest team, for balanced open
// registration. Configuration order breaks ties.
func (s *Store) TeamWithLeastMembers(ctx context.Context) (string, error) {
	best := ""
	bestCount := int64(-1)
	for _, team := range s.comp.Teams {
		count, err := s.rdb.SCard(ctx, s.key(team.Name, "users")).Result()
		if err != nil {
			return "", fmt.Errorf("count team members: %w", err)
		}
		if bestCount < 0 || count < bestCount {
			best = team.Name
			bestCount = count
		}
	}
	if best == "" {
		return "", fmt.Errorf("competition has no teams: %w", ErrNotFound)
	}
	return best, nil
}
