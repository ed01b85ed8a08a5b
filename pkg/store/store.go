package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/carvesec/carve/pkg/config"
)

// apiKeySet is the one key shared across competitions.
const apiKeySet = "carve:api_keys"

// Store is a typed facade over one competition's broker.
type Store struct {
	rdb  *redis.Client
	comp *config.Competition

	// now is swapped out by tests that exercise deadline behavior.
	now func() time.Time
}

// New connects to the competition's broker and verifies it is reachable.
func New(comp *config.Competition) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         comp.Redis.Addr(),
		DB:           comp.Redis.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("broker unreachable at %s: %w", comp.Redis.Addr(), err)
	}
	return NewWithClient(comp, rdb), nil
}

// NewWithClient wraps an existing client. Used by tests and by processes
// that share one connection pool across stores.
func NewWithClient(comp *config.Competition, rdb *redis.Client) *Store {
	return &Store{rdb: rdb, comp: comp, now: time.Now}
}

// Competition returns the configuration this store serves.
func (s *Store) Competition() *config.Competition {
	return s.comp
}

// Ping checks broker connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the broker connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// key joins parts under the competition namespace.
func (s *Store) key(parts ...string) string {
	return s.comp.Name + ":" + strings.Join(parts, ":")
}

func encodeYAML(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return string(data), nil
}

func decodeYAML(data string, v interface{}) error {
	if err := yaml.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

const alphanumerics = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const lowerAlphanumerics = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomString(alphabet string, n int) string {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b)
}

func randomDigits(n int) string {
	return randomString("0123456789", n)
}

func randomHex(bytes int) string {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(b)
}
