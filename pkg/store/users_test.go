package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookupUser(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	u := User{
		Username:        "anna",
		Email:           "anna@example.org",
		Team:            "alpha",
		IdentitySources: []IdentitySource{IdentityOIDC},
	}
	require.NoError(t, s.RegisterUser(ctx, u))

	got, err := s.User(ctx, "anna")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = s.User(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterMergesIdentitySources(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterUser(ctx, User{
		Username:        "anna",
		Email:           "anna@example.org",
		IdentitySources: []IdentitySource{IdentityOIDC},
	}))
	require.NoError(t, s.RegisterUser(ctx, User{
		Username:        "anna",
		Email:           "anna@example.org",
		IdentitySources: []IdentitySource{IdentityLocalPassword},
	}))

	got, err := s.User(ctx, "anna")
	require.NoError(t, err)
	assert.True(t, got.HasIdentitySource(IdentityOIDC))
	assert.True(t, got.HasIdentitySource(IdentityLocalPassword))
}

func TestRegisterMovesTeams(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterUser(ctx, User{Username: "anna", Email: "anna@example.org", Team: "alpha"}))
	require.NoError(t, s.RegisterUser(ctx, User{Username: "anna", Email: "anna@example.org", Team: "bravo"}))

	alpha, err := s.TeamMembers(ctx, "alpha")
	require.NoError(t, err)
	assert.Empty(t, alpha)

	bravo, err := s.TeamMembers(ctx, "bravo")
	require.NoError(t, err)
	assert.Equal(t, []string{"anna"}, bravo)
}

func TestRegisterValidatesInput(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.RegisterUser(ctx, User{Username: "a", Email: "a@example.org"}))
	assert.Error(t, s.RegisterUser(ctx, User{Username: "anna", Email: "not-an-email"}))
}

func TestPasswordRoundTrip(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterUser(ctx, User{Username: "anna", Email: "anna@example.org"}))
	require.NoError(t, s.SetPassword(ctx, "anna", "correct horse battery"))

	ok, err := s.VerifyPassword(ctx, "anna", "correct horse battery")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.VerifyPassword(ctx, "anna", "wrong password")
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown users verify false without an error.
	ok, err = s.VerifyPassword(ctx, "nobody", "anything")
	require.NoError(t, err)
	assert.False(t, ok)

	// Setting a password records the identity source.
	u, err := s.User(ctx, "anna")
	require.NoError(t, err)
	assert.True(t, u.HasIdentitySource(IdentityLocalPassword))
}

func TestSetPasswordRejectsShort(t *testing.T) {
	s, _, _ := newTestStore(t)

	err := s.SetPassword(context.Background(), "anna", "short")
	assert.Error(t, err)
}

func TestListUsers(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterUser(ctx, User{Username: "anna", Email: "anna@example.org"}))
	require.NoError(t, s.RegisterUser(ctx, User{Username: "ben", Email: "ben@example.org"}))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestHashPasswordFormat(t *testing.T) {
	encoded, err := hashPassword("some password")
	require.NoError(t, err)
	assert.Regexp(t, `^\$argon2id\$v=19\$m=\d+,t=\d+,p=\d+\$`, encoded)

	ok, err := verifyPasswordHash(encoded, "some password")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = verifyPasswordHash("not-a-hash", "x")
	assert.Error(t, err)
}
