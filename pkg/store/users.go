package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/carvesec/carve/pkg/config"
)

// RegisterUser upserts a user record. An existing user keeps its identity
// sources merged with the incoming ones, and a team change removes the
// user from every other team's membership set before adding the new one.
// The removal sweep is best-effort; a racing register can briefly leave
// the user in two sets.
func (s *Store) RegisterUser(ctx context.Context, u User) error {
	if err := config.ValidateUsername(u.Username); err != nil {
		return err
	}
	if u.Email != "" {
		if err := config.ValidateEmail(u.Email); err != nil {
			return err
		}
	}

	existing, err := s.User(ctx, u.Username)
	if err == nil {
		for _, src := range existing.IdentitySources {
			if !u.HasIdentitySource(src) {
				u.IdentitySources = append(u.IdentitySources, src)
			}
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if u.Team != "" {
		for _, team := range s.comp.Teams {
			if team.Name == u.Team {
				continue
			}
			if err := s.rdb.SRem(ctx, s.key(team.Name, "users"), u.Username).Err(); err != nil {
				return fmt.Errorf("remove user from team %s: %w", team.Name, err)
			}
		}
		if err := s.rdb.SAdd(ctx, s.key(u.Team, "users"), u.Username).Err(); err != nil {
			return fmt.Errorf("add user to team %s: %w", u.Team, err)
		}
	}

	raw, err := encodeYAML(u)
	if err != nil {
		return err
	}
	if err := s.rdb.SAdd(ctx, s.key("users"), u.Username).Err(); err != nil {
		return fmt.Errorf("register username: %w", err)
	}
	if err := s.rdb.HSet(ctx, s.key("user_data"), u.Username, raw).Err(); err != nil {
		return fmt.Errorf("write user record: %w", err)
	}
	return nil
}

// User looks up a user record by username.
func (s *Store) User(ctx context.Context, username string) (User, error) {
	raw, err := s.rdb.HGet(ctx, s.key("user_data"), username).Result()
	if errors.Is(err, redis.Nil) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("read user record: %w", err)
	}
	var u User
	if err := decodeYAML(raw, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// ListUsers returns every registered user record.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	records, err := s.rdb.HGetAll(ctx, s.key("user_data")).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]User, 0, len(records))
	for _, raw := range records {
		var u User
		if err := decodeYAML(raw, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// SetPassword hashes and stores a user's password, recording the local
// password identity source on the user record.
func (s *Store) SetPassword(ctx context.Context, username, password string) error {
	if err := config.ValidatePassword(password); err != nil {
		return err
	}
	encoded, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, s.key("users", "password_hashes"), username, encoded).Err(); err != nil {
		return fmt.Errorf("write password hash: %w", err)
	}

	u, err := s.User(ctx, username)
	if err == nil && !u.HasIdentitySource(IdentityLocalPassword) {
		u.IdentitySources = append(u.IdentitySources, IdentityLocalPassword)
		raw, err := encodeYAML(u)
		if err != nil {
			return err
		}
		if err := s.rdb.HSet(ctx, s.key("user_data"), username, raw).Err(); err != nil {
			return fmt.Errorf("update identity sources: %w", err)
		}
	}
	return nil
}

// VerifyPassword checks a login attempt. Unknown users verify as false
// without revealing whether the account exists.
func (s *Store) VerifyPassword(ctx context.Context, username, password string) (bool, error) {
	encoded, err := s.rdb.HGet(ctx, s.key("users", "password_hashes"), username).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read password hash: %w", err)
	}
	return verifyPasswordHash(encoded, password)
}
