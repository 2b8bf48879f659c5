package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/sakif/ticketflow/internal/model"
	"github.com/sakif/ticketflow/internal/repository"
)

// TicketService implements ticket CRUD, filtering and the dashboard stats.
//
// Tickets are shared by every account; any signed-in user sees and edits
// the whole collection.
//
// Every method runs under one mutex, so a validate-load-merge-save cycle is
// never interleaved with another request's write.
type TicketService struct {
	tickets repository.TicketRepository
	logger  *slog.Logger
	mu      sync.Mutex
}

func NewTicketService(tickets repository.TicketRepository, logger *slog.Logger) *TicketService {
	return &TicketService{tickets: tickets, logger: logger}
}

// List returns every ticket in insertion order.
func (s *TicketService) List(ctx context.Context) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.tickets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/ticket: listing: %w", err)
	}
	return tickets, nil
}

func (s *TicketService) Get(ctx context.Context, id string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/ticket: getting %s: %w", id, err)
	}
	return t, nil
}

// Create validates in, then appends a new ticket.
//
// VALIDATION BEFORE MUTATION:
// All field problems are reported together in one apperror.ErrValidation,
// and the collection is not touched when any field fails.
func (s *TicketService) Create(ctx context.Context, in TicketInput) (*model.Ticket, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &model.Ticket{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("service/ticket: creating: %w", err)
	}

	s.logger.Info("ticket created",
		slog.String("id", t.ID),
		slog.String("status", string(t.Status)),
	)
	return t, nil
}

// Update merges the provided fields into ticket id.
// Validation runs first; an unknown id then fails with apperror.ErrNotFound.
func (s *TicketService) Update(ctx context.Context, id string, p TicketPatch) (*model.Ticket, error) {
	p, err := normalizePatch(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/ticket: updating %s: %w", id, err)
	}

	p.apply(t)
	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("service/ticket: updating %s: %w", id, err)
	}

	s.logger.Info("ticket updated",
		slog.String("id", t.ID),
		slog.String("status", string(t.Status)),
	)
	return t, nil
}

// Delete removes ticket id and returns the remaining collection.
// An unknown id is a no-op, not an error.
func (s *TicketService) Delete(ctx context.Context, id string) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining, err := s.tickets.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/ticket: deleting %s: %w", id, err)
	}

	s.logger.Info("ticket deleted",
		slog.String("id", id),
		slog.Int("remaining", len(remaining)),
	)
	return remaining, nil
}

// Filter returns the tickets whose status equals status, in list order.
// "" and "all" select every ticket. A status no ticket can have selects none.
func (s *TicketService) Filter(ctx context.Context, status string) ([]model.Ticket, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" || status == model.StatusAll {
		return all, nil
	}

	matched := make([]model.Ticket, 0, len(all))
	for _, t := range all {
		if t.Status == model.TicketStatus(status) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// Stats counts tickets by status for the dashboard.
func (s *TicketService) Stats(ctx context.Context) (model.TicketStats, error) {
	all, err := s.List(ctx)
	if err != nil {
		return model.TicketStats{}, err
	}
	return computeStats(all), nil
}

func computeStats(tickets []model.Ticket) model.TicketStats {
	var st model.TicketStats
	st.Total = len(tickets)
	for _, t := range tickets {
		switch t.Status {
		case model.StatusOpen:
			st.Open++
		case model.StatusInProgress:
			st.InProgress++
		case model.StatusClosed:
			st.Closed++
		}
	}
	st.Outstanding = st.Open + st.InProgress
	if st.Total > 0 {
		st.ResolutionRate = int(math.Round(float64(st.Closed) / float64(st.Total) * 100))
	}
	return st
}
