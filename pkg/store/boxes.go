package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const fdbFieldTTL = 20 * time.Second

// SetCredentials writes the login for a (team, box) VM exactly once.
// Returns true when this call was the writer; a later caller observes
// false and the original value stands.
func (s *Store) SetCredentials(ctx context.Context, team, box, username, password string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.key(team, box, "credentials"), username+":"+password, 0).Result()
	if err != nil {
		return false, fmt.Errorf("write credentials: %w", err)
	}
	return ok, nil
}

// Credentials reads the login for a (team, box) VM.
func (s *Store) Credentials(ctx context.Context, team, box string) (username, password string, err error) {
	raw, err := s.rdb.Get(ctx, s.key(team, box, "credentials")).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("read credentials: %w", err)
	}
	username, password, found := strings.Cut(raw, ":")
	if !found {
		return "", "", fmt.Errorf("malformed credentials for %s/%s", team, box)
	}
	return username, password, nil
}

// SetSSHKeypair stores the private key material for a (team, box) VM
// exactly once, same contract as SetCredentials.
func (s *Store) SetSSHKeypair(ctx context.Context, team, box, keypair string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.key(team, box, "ssh_keypair"), keypair, 0).Result()
	if err != nil {
		return false, fmt.Errorf("write ssh keypair: %w", err)
	}
	return ok, nil
}

// SSHKeypair reads the private key material for a (team, box) VM.
func (s *Store) SSHKeypair(ctx context.Context, team, box string) (string, error) {
	raw, err := s.rdb.Get(ctx, s.key(team, box, "ssh_keypair")).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read ssh keypair: %w", err)
	}
	return raw, nil
}

// ConsoleCode returns the team's browser console access code, creating
// it on first use. Concurrent first callers converge on one code.
func (s *Store) ConsoleCode(ctx context.Context, team string) (string, error) {
	key := s.key("box_console_codes")
	code := randomString(alphanumerics, 32)
	if err := s.rdb.HSetNX(ctx, key, team, code).Err(); err != nil {
		return "", fmt.Errorf("write console code: %w", err)
	}
	code, err := s.rdb.HGet(ctx, key, team).Result()
	if err != nil {
		return "", fmt.Errorf("read console code: %w", err)
	}
	return code, nil
}

// RecordBoxIP remembers the overlay address a box instance resolved to.
func (s *Store) RecordBoxIP(ctx context.Context, team, box, ip string) error {
	if err := s.rdb.Set(ctx, s.key(team, box, "ip"), ip, 0).Err(); err != nil {
		return fmt.Errorf("record box ip: %w", err)
	}
	return nil
}

// BoxIP returns the last recorded overlay address for a box instance.
func (s *Store) BoxIP(ctx context.Context, team, box string) (string, error) {
	ip, err := s.rdb.Get(ctx, s.key(team, box, "ip")).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read box ip: %w", err)
	}
	return ip, nil
}

// StartCooldown marks a (team, box) as cooling down for ttl.
func (s *Store) StartCooldown(ctx context.Context, team, box string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(team, box, "cooldown"), "1", ttl).Err(); err != nil {
		return fmt.Errorf("start cooldown: %w", err)
	}
	return nil
}

// CooldownRemaining reports whether a (team, box) is cooling down and
// how many seconds remain. A marker without a TTL reports zero seconds.
func (s *Store) CooldownRemaining(ctx context.Context, team, box string) (time.Duration, bool, error) {
	ttl, err := s.rdb.TTL(ctx, s.key(team, box, "cooldown")).Result()
	if err != nil {
		return 0, false, fmt.Errorf("read cooldown: %w", err)
	}
	// go-redis passes through the sentinel replies: -2 means the key is
	// absent, -1 means it exists without a TTL.
	switch {
	case ttl == time.Duration(-2):
		return 0, false, nil
	case ttl == time.Duration(-1):
		return 0, true, nil
	default:
		return ttl, true, nil
	}
}

// SendBoxCommand publishes a command on the (team, box) event channel.
// Restore commands are rate limited by the competition's restore
// cooldown; a restore during cooldown returns ErrRateLimited. Every
// accepted command also raises a toast for the team.
func (s *Store) SendBoxCommand(ctx context.Context, team, box string, cmd BoxCommand) error {
	if cmd == CommandRestore {
		remaining, cooling, err := s.CooldownRemaining(ctx, team, box)
		if err != nil {
			return err
		}
		if cooling {
			return fmt.Errorf("%w: %s cooling down for %s", ErrRateLimited, box, remaining)
		}
		cooldown := time.Duration(s.comp.RestoreCooldownSeconds()) * time.Second
		if err := s.StartCooldown(ctx, team, box, cooldown); err != nil {
			return err
		}
	}

	raw, err := encodeYAML(cmd)
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, s.key(team, box, "events"), raw).Err(); err != nil {
		return fmt.Errorf("publish box command: %w", err)
	}

	s.PublishToast(ctx, Toast{
		Title:    fmt.Sprintf("Box %s", box),
		Message:  fmt.Sprintf("%s command sent to %s", cmd, box),
		Severity: SeverityInfo,
		Team:     team,
	})
	return nil
}

// WaitForBoxEvent blocks until a command in accepted arrives on the
// (team, box) event channel. Commands outside the accepted set are
// dropped and the wait continues.
func (s *Store) WaitForBoxEvent(ctx context.Context, team, box string, accepted []BoxCommand) (BoxCommand, error) {
	sub := s.rdb.Subscribe(ctx, s.key(team, box, "events"))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return "", fmt.Errorf("subscribe box events: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return "", fmt.Errorf("box event channel closed")
			}
			var cmd BoxCommand
			if err := decodeYAML(msg.Payload, &cmd); err != nil {
				return "", err
			}
			for _, want := range accepted {
				if cmd == want {
					return cmd, nil
				}
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// SetFDBEntry advertises a MAC to IP mapping for the overlay domain.
// Entries expire after 20 seconds unless refreshed.
func (s *Store) SetFDBEntry(ctx context.Context, domain, mac, ip string) error {
	key := s.key("vxlan_fdb", domain)
	if err := s.rdb.HSet(ctx, key, mac, ip).Err(); err != nil {
		return fmt.Errorf("write fdb entry: %w", err)
	}
	if err := s.rdb.HExpire(ctx, key, fdbFieldTTL, mac).Err(); err != nil {
		return fmt.Errorf("expire fdb entry: %w", err)
	}
	return nil
}

// FDBEntries lists the live MAC to IP mappings for an overlay domain.
func (s *Store) FDBEntries(ctx context.Context, domain string) (map[string]string, error) {
	entries, err := s.rdb.HGetAll(ctx, s.key("vxlan_fdb", domain)).Result()
	if err != nil {
		return nil, fmt.Errorf("read fdb entries: %w", err)
	}
	return entries, nil
}

// SetSubnets records the overlay subnet map, one wire-format entry per
// team plus the management entry.
func (s *Store) SetSubnets(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(entries)*2)
	for name, entry := range entries {
		values = append(values, name, entry)
	}
	if err := s.rdb.HSet(ctx, s.key("subnets"), values...).Err(); err != nil {
		return fmt.Errorf("write subnet map: %w", err)
	}
	return nil
}

// Subnets reads the overlay subnet map.
func (s *Store) Subnets(ctx context.Context) (map[string]string, error) {
	entries, err := s.rdb.HGetAll(ctx, s.key("subnets")).Result()
	if err != nil {
		return nil, fmt.Errorf("read subnet map: %w", err)
	}
	return entries, nil
}
