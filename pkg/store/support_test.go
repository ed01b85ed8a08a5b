package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTicket(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "alpha", "Box down", "web is <b>unreachable</b>")
	require.NoError(t, err)
	assert.Equal(t, 1, ticket.ID)
	assert.Equal(t, TicketOpen, ticket.State)
	assert.Equal(t, "Box down", ticket.Subject)
	require.Len(t, ticket.Messages, 1)
	assert.Equal(t, SenderTeam, ticket.Messages[0].Sender)
	assert.Equal(t, "web is unreachable", ticket.Messages[0].Text)

	second, err := s.CreateTicket(ctx, "alpha", "Another", "text")
	require.NoError(t, err)
	assert.Equal(t, 2, second.ID)

	// Counters are per team.
	other, err := s.CreateTicket(ctx, "bravo", "Hello", "text")
	require.NoError(t, err)
	assert.Equal(t, 1, other.ID)
}

func TestAppendTicketMessage(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "alpha", "Box down", "please help")
	require.NoError(t, err)

	updated, err := s.AppendTicketMessage(ctx, "alpha", ticket.ID, SenderAdmin, "<script>x</script>on it")
	require.NoError(t, err)
	require.Len(t, updated.Messages, 2)
	assert.Equal(t, SenderAdmin, updated.Messages[1].Sender)
	assert.Equal(t, "on it", updated.Messages[1].Text)

	_, err = s.AppendTicketMessage(ctx, "alpha", 99, SenderAdmin, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketStateAndDelete(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	ticket, err := s.CreateTicket(ctx, "alpha", "Box down", "please help")
	require.NoError(t, err)

	closed, err := s.SetTicketState(ctx, "alpha", ticket.ID, TicketClosed)
	require.NoError(t, err)
	assert.Equal(t, TicketClosed, closed.State)

	require.NoError(t, s.DeleteTicket(ctx, "alpha", ticket.ID))
	_, err = s.Ticket(ctx, "alpha", ticket.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketListing(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTicket(ctx, "alpha", "first", "x")
	require.NoError(t, err)
	_, err = s.CreateTicket(ctx, "alpha", "second", "x")
	require.NoError(t, err)
	_, err = s.CreateTicket(ctx, "bravo", "third", "x")
	require.NoError(t, err)

	tickets, err := s.TeamTickets(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "first", tickets[0].Subject)
	assert.Equal(t, "second", tickets[1].Subject)

	all, err := s.AllTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := s.TicketCount(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
