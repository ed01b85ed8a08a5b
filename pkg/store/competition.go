package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carvesec/carve/pkg/log"
)

const stateField = "state"

// State returns the competition lifecycle record. A competition that has
// never been started reads as Unstarted. If the record is Active and its
// end time has passed, the transition to Finished is persisted and
// broadcast before this call returns; the caller always observes the
// deadline as already enforced.
func (s *Store) State(ctx context.Context) (CompetitionState, error) {
	st, err := s.readState(ctx)
	if err != nil {
		return CompetitionState{}, err
	}
	if st.Status == StatusActive && st.EndTime != nil && s.now().Unix() >= *st.EndTime {
		st.Status = StatusFinished
		if err := s.writeState(ctx, st); err != nil {
			return CompetitionState{}, err
		}
		s.announceTransition(ctx, st, "Competition finished", "Time is up!")
	}
	return st, nil
}

// Start transitions Unstarted to Active. A positive duration fixes the
// end time; zero leaves the competition open-ended.
func (s *Store) Start(ctx context.Context, duration time.Duration) (CompetitionState, error) {
	st, err := s.State(ctx)
	if err != nil {
		return CompetitionState{}, err
	}
	switch st.Status {
	case StatusActive:
		return st, ErrAlreadyActive
	case StatusFinished:
		return st, ErrAlreadyFinished
	}

	start := s.now()
	st = CompetitionState{Status: StatusActive, StartTime: unixPtr(start)}
	if duration > 0 {
		st.EndTime = unixPtr(start.Add(duration))
	}
	if err := s.writeState(ctx, st); err != nil {
		return CompetitionState{}, err
	}
	s.announceTransition(ctx, st, "Competition started", "Good luck, have fun!")
	return st, nil
}

// End transitions Active to Finished, setting the end time to now.
func (s *Store) End(ctx context.Context) (CompetitionState, error) {
	st, err := s.State(ctx)
	if err != nil {
		return CompetitionState{}, err
	}
	if st.Status != StatusActive {
		if st.Status == StatusFinished {
			return st, ErrAlreadyFinished
		}
		return st, ErrNotStarted
	}

	st.Status = StatusFinished
	st.EndTime = unixPtr(s.now())
	if err := s.writeState(ctx, st); err != nil {
		return CompetitionState{}, err
	}
	s.announceTransition(ctx, st, "Competition finished", "Scoring has stopped.")
	return st, nil
}

// WaitForCompetitionEvent blocks until the next lifecycle broadcast.
func (s *Store) WaitForCompetitionEvent(ctx context.Context) (CompetitionState, error) {
	sub := s.rdb.Subscribe(ctx, s.key("events"))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return CompetitionState{}, fmt.Errorf("subscribe competition events: %w", err)
	}

	select {
	case msg, ok := <-sub.Channel():
		if !ok {
			return CompetitionState{}, fmt.Errorf("competition event channel closed")
		}
		var st CompetitionState
		if err := decodeYAML(msg.Payload, &st); err != nil {
			return CompetitionState{}, err
		}
		return st, nil
	case <-ctx.Done():
		return CompetitionState{}, ctx.Err()
	}
}

func (s *Store) readState(ctx context.Context) (CompetitionState, error) {
	raw, err := s.rdb.HGet(ctx, s.key("state"), stateField).Result()
	if errors.Is(err, redis.Nil) {
		return CompetitionState{Status: StatusUnstarted}, nil
	}
	if err != nil {
		return CompetitionState{}, fmt.Errorf("read competition state: %w", err)
	}
	var st CompetitionState
	if err := decodeYAML(raw, &st); err != nil {
		return CompetitionState{}, err
	}
	return st, nil
}

func (s *Store) writeState(ctx context.Context, st CompetitionState) error {
	raw, err := encodeYAML(st)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, s.key("state"), stateField, raw).Err(); err != nil {
		return fmt.Errorf("write competition state: %w", err)
	}
	return nil
}

// announceTransition publishes the new state and a global toast. Both are
// best-effort; the persisted transition is already authoritative.
func (s *Store) announceTransition(ctx context.Context, st CompetitionState, title, message string) {
	raw, err := encodeYAML(st)
	if err == nil {
		err = s.rdb.Publish(ctx, s.key("events"), raw).Err()
	}
	if err != nil {
		logger := log.WithCompetition(s.comp.Name)
		logger.Warn().Err(err).Msg("Failed to broadcast state transition")
	}
	s.PublishToast(ctx, Toast{Title: title, Message: message, Severity: SeverityInfo})
}
