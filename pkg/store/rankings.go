package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// LastKnownRankings returns the leaderboard order persisted by the last
// scoring pass, best team first. Returns nil before the first pass.
func (s *Store) LastKnownRankings(ctx context.Context) ([]string, error) {
	raw, err := s.rdb.Get(ctx, s.key("last_known_rankings")).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rankings: %w", err)
	}
	var teams []string
	if err := decodeYAML(raw, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// SetLastKnownRankings persists the current leaderboard order.
func (s *Store) SetLastKnownRankings(ctx context.Context, teams []string) error {
	raw, err := encodeYAML(teams)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key("last_known_rankings"), raw, 0).Err(); err != nil {
		return fmt.Errorf("write rankings: %w", err)
	}
	return nil
}
