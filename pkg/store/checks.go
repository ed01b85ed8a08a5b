package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func (s *Store) currentStateKey(team string) string {
	return s.key(team, "current_state")
}

func (s *Store) ledgerKey(teamID int, check string) string {
	return fmt.Sprintf("%s:%d:%s", s.comp.Name, teamID, check)
}

// SetCheckState overwrites the current-state summary for (team, check).
func (s *Store) SetCheckState(ctx context.Context, team, check string, st CheckCurrentState) error {
	raw, err := encodeYAML(st)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, s.currentStateKey(team), check, raw).Err(); err != nil {
		return fmt.Errorf("write check state: %w", err)
	}
	return nil
}

// CheckState reads the current-state summary for (team, check). A pair
// with no recorded state yet reads as the canonical empty record rather
// than an error.
func (s *Store) CheckState(ctx context.Context, team, check string) (CheckCurrentState, error) {
	raw, err := s.rdb.HGet(ctx, s.currentStateKey(team), check).Result()
	if errors.Is(err, redis.Nil) {
		return EmptyCheckState(), nil
	}
	if err != nil {
		return CheckCurrentState{}, fmt.Errorf("read check state: %w", err)
	}
	var st CheckCurrentState
	if err := decodeYAML(raw, &st); err != nil {
		return CheckCurrentState{}, err
	}
	return st, nil
}

// AllCheckStates returns every recorded summary for a team, keyed by
// check name.
func (s *Store) AllCheckStates(ctx context.Context, team string) (map[string]CheckCurrentState, error) {
	records, err := s.rdb.HGetAll(ctx, s.currentStateKey(team)).Result()
	if err != nil {
		return nil, fmt.Errorf("read check states: %w", err)
	}
	states := make(map[string]CheckCurrentState, len(records))
	for check, raw := range records {
		var st CheckCurrentState
		if err := decodeYAML(raw, &st); err != nil {
			return nil, err
		}
		states[check] = st
	}
	return states, nil
}

// RecordSuccess appends occurrences ledger events scored at ts for
// (team, check). Outside an Active competition this is a silent no-op,
// which is what makes scoring stop at the deadline without coordinating
// with the scheduler.
func (s *Store) RecordSuccess(ctx context.Context, teamID int, check string, ts int64, occurrences int) error {
	st, err := s.State(ctx)
	if err != nil {
		return err
	}
	if st.Status != StatusActive {
		return nil
	}

	members := make([]redis.Z, 0, occurrences)
	for i := 0; i < occurrences; i++ {
		members = append(members, redis.Z{
			Score:  float64(ts),
			Member: fmt.Sprintf("%d:%d", ts, i),
		})
	}
	if len(members) == 0 {
		return nil
	}
	if err := s.rdb.ZAdd(ctx, s.ledgerKey(teamID, check), members...).Err(); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

// LedgerCount returns how many success events a (team, check) pair has
// accumulated. Score is this count times the check's point value.
func (s *Store) LedgerCount(ctx context.Context, teamID int, check string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, s.ledgerKey(teamID, check)).Result()
	if err != nil {
		return 0, fmt.Errorf("count ledger: %w", err)
	}
	return n, nil
}

// LedgerCountBefore counts success events scored at or before ts.
func (s *Store) LedgerCountBefore(ctx context.Context, teamID int, check string, ts int64) (int64, error) {
	n, err := s.rdb.ZCount(ctx, s.ledgerKey(teamID, check), "-inf", fmt.Sprintf("%d", ts)).Result()
	if err != nil {
		return 0, fmt.Errorf("count ledger window: %w", err)
	}
	return n, nil
}
