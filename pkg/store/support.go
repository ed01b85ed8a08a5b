package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/carvesec/carve/pkg/sanitize"
)

func (s *Store) ticketKey(team string) string {
	return s.key(team, "support_tickets")
}

// CreateTicket opens a support ticket with a first message. Subject and
// message text are sanitized before storage. Admins are notified by a
// global toast.
func (s *Store) CreateTicket(ctx context.Context, team, subject, text string) (SupportTicket, error) {
	id, err := s.rdb.Incr(ctx, s.key(team, "support_ticket_counter")).Result()
	if err != nil {
		return SupportTicket{}, fmt.Errorf("allocate ticket id: %w", err)
	}

	ticket := SupportTicket{
		ID:      int(id),
		Team:    team,
		Subject: sanitize.Message(subject),
		State:   TicketOpen,
		Messages: []TicketMessage{{
			Sender:    SenderTeam,
			Timestamp: s.now().Unix(),
			Text:      sanitize.Message(text),
		}},
	}
	if err := s.writeTicket(ctx, ticket); err != nil {
		return SupportTicket{}, err
	}

	s.PublishToast(ctx, Toast{
		Title:    "New support ticket",
		Message:  fmt.Sprintf("%s opened ticket #%d: %s", team, ticket.ID, ticket.Subject),
		Severity: SeverityInfo,
	})
	return ticket, nil
}

// AppendTicketMessage adds a sanitized message to an existing ticket and
// toasts the team when the reply comes from an admin.
func (s *Store) AppendTicketMessage(ctx context.Context, team string, id int, sender TicketSender, text string) (SupportTicket, error) {
	ticket, err := s.Ticket(ctx, team, id)
	if err != nil {
		return SupportTicket{}, err
	}

	ticket.Messages = append(ticket.Messages, TicketMessage{
		Sender:    sender,
		Timestamp: s.now().Unix(),
		Text:      sanitize.Message(text),
	})
	if err := s.writeTicket(ctx, ticket); err != nil {
		return SupportTicket{}, err
	}

	if sender == SenderAdmin {
		s.PublishToast(ctx, Toast{
			Title:    fmt.Sprintf("Ticket #%d", id),
			Message:  "Support replied to your ticket",
			Severity: SeverityInfo,
			Team:     team,
		})
	}
	return ticket, nil
}

// SetTicketState opens or closes a ticket and notifies the team.
func (s *Store) SetTicketState(ctx context.Context, team string, id int, state TicketState) (SupportTicket, error) {
	ticket, err := s.Ticket(ctx, team, id)
	if err != nil {
		return SupportTicket{}, err
	}

	ticket.State = state
	if err := s.writeTicket(ctx, ticket); err != nil {
		return SupportTicket{}, err
	}

	s.PublishToast(ctx, Toast{
		Title:    fmt.Sprintf("Ticket #%d", id),
		Message:  fmt.Sprintf("Ticket is now %s", state),
		Severity: SeverityInfo,
		Team:     team,
	})
	return ticket, nil
}

// DeleteTicket removes a ticket; deleting an unknown id is not an error.
func (s *Store) DeleteTicket(ctx context.Context, team string, id int) error {
	if err := s.rdb.HDel(ctx, s.ticketKey(team), strconv.Itoa(id)).Err(); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}

// Ticket looks up one ticket by id.
func (s *Store) Ticket(ctx context.Context, team string, id int) (SupportTicket, error) {
	raw, err := s.rdb.HGet(ctx, s.ticketKey(team), strconv.Itoa(id)).Result()
	if errors.Is(err, redis.Nil) {
		return SupportTicket{}, ErrNotFound
	}
	if err != nil {
		return SupportTicket{}, fmt.Errorf("read ticket: %w", err)
	}
	var ticket SupportTicket
	if err := decodeYAML(raw, &ticket); err != nil {
		return SupportTicket{}, err
	}
	return ticket, nil
}

// TeamTickets lists a team's tickets ordered by id.
func (s *Store) TeamTickets(ctx context.Context, team string) ([]SupportTicket, error) {
	records, err := s.rdb.HGetAll(ctx, s.ticketKey(team)).Result()
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	tickets := make([]SupportTicket, 0, len(records))
	for _, raw := range records {
		var ticket SupportTicket
		if err := decodeYAML(raw, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

// AllTickets lists every team's tickets, grouped in configuration order.
func (s *Store) AllTickets(ctx context.Context) ([]SupportTicket, error) {
	var all []SupportTicket
	for _, team := range s.comp.Teams {
		tickets, err := s.TeamTickets(ctx, team.Name)
		if err != nil {
			return nil, err
		}
		all = append(all, tickets...)
	}
	return all, nil
}

// TicketCount returns how many tickets a team has filed.
func (s *Store) TicketCount(ctx context.Context, team string) (int64, error) {
	n, err := s.rdb.HLen(ctx, s.ticketKey(team)).Result()
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

func (s *Store) writeTicket(ctx context.Context, ticket SupportTicket) error {
	raw, err := encodeYAML(ticket)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, s.ticketKey(ticket.Team), strconv.Itoa(ticket.ID), raw).Err(); err != nil {
		return fmt.Errorf("write ticket: %w", err)
	}
	return nil
}
