package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/carvesec/carve/pkg/log"
)

// Toast channels are global, not competition-scoped; the web tier serves
// every competition from one subscriber set.
const (
	toastChannel    = "carve:toasts"
	toastTeamPrefix = "carve:toasts:team:"
	toastUserPrefix = "carve:toasts:user:"
)

func toastChannelFor(t Toast) string {
	switch {
	case t.User != "":
		return toastUserPrefix + t.User
	case t.Team != "":
		return toastTeamPrefix + t.Team
	default:
		return toastChannel
	}
}

// PublishToast broadcasts a notification. Delivery is best-effort; a
// failed publish is logged and dropped.
func (s *Store) PublishToast(ctx context.Context, t Toast) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = s.now().Unix()
	}
	if t.Severity == "" {
		t.Severity = SeverityInfo
	}

	data, err := json.Marshal(t)
	if err == nil {
		err = s.rdb.Publish(ctx, toastChannelFor(t), data).Err()
	}
	if err != nil {
		logger := log.WithCompetition(s.comp.Name)
		logger.Warn().Err(err).Str("title", t.Title).Msg("Failed to publish toast")
	}
}

// WaitForNextToast blocks until a toast arrives on the global channel or
// on the team/user scoped channels, whichever is non-empty.
func (s *Store) WaitForNextToast(ctx context.Context, team, user string) (Toast, error) {
	channels := []string{toastChannel}
	if team != "" {
		channels = append(channels, toastTeamPrefix+team)
	}
	if user != "" {
		channels = append(channels, toastUserPrefix+user)
	}

	sub := s.rdb.Subscribe(ctx, channels...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return Toast{}, fmt.Errorf("subscribe toasts: %w", err)
	}

	select {
	case msg, ok := <-sub.Channel():
		if !ok {
			return Toast{}, fmt.Errorf("toast channel closed")
		}
		var t Toast
		if err := json.Unmarshal([]byte(msg.Payload), &t); err != nil {
			return Toast{}, fmt.Errorf("decode toast: %w", err)
		}
		return t, nil
	case <-ctx.Done():
		return Toast{}, ctx.Err()
	}
}

// GenerateAPIKey mints a new key and adds it to the global key set.
func (s *Store) GenerateAPIKey(ctx context.Context) (string, error) {
	key := randomHex(16)
	if err := s.rdb.SAdd(ctx, apiKeySet, key).Err(); err != nil {
		return "", fmt.Errorf("add api key: %w", err)
	}
	return key, nil
}

// RevokeAPIKey removes a key; revoking an unknown key is not an error.
func (s *Store) RevokeAPIKey(ctx context.Context, key string) error {
	if err := s.rdb.SRem(ctx, apiKeySet, key).Err(); err != nil {
		return fmt.Errorf("remove api key: %w", err)
	}
	return nil
}

// APIKeyExists reports whether the key is currently valid.
func (s *Store) APIKeyExists(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, apiKeySet, key).Result()
	if err != nil {
		return false, fmt.Errorf("check api key: %w", err)
	}
	return ok, nil
}

// ListAPIKeys returns every valid key.
func (s *Store) ListAPIKeys(ctx context.Context) ([]string, error) {
	keys, err := s.rdb.SMembers(ctx, apiKeySet).Result()
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}
