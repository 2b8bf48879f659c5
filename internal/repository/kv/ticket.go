package kv

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/ticketflow/internal/apperror"
	"github.com/sakif/ticketflow/internal/clock"
	"github.com/sakif/ticketflow/internal/model"
	"github.com/sakif/ticketflow/internal/repository"
	"github.com/sakif/ticketflow/internal/storage"
)

var _ repository.TicketRepository = (*TicketRepo)(nil)

// TicketRepo stores tickets as a JSON array under KeyTickets.
type TicketRepo struct {
	store storage.Storage
	clock clock.Clock
	mu    sync.Mutex
}

func NewTicketRepo(store storage.Storage, clk clock.Clock) *TicketRepo {
	return &TicketRepo{store: store, clock: clk}
}

func (r *TicketRepo) load(ctx context.Context) ([]model.Ticket, error) {
	var tickets []model.Ticket
	if _, err := loadJSON(ctx, r.store, KeyTickets, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// List never returns nil, so an empty collection encodes as [].
func (r *TicketRepo) List(ctx context.Context) ([]model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	return tickets, nil
}

func (r *TicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(tickets, id); i >= 0 {
		t := tickets[i]
		return &t, nil
	}
	return nil, apperror.NotFound("ticket", id)
}

// Create fills in the ticket's ID and CreatedAt before appending it.
//
// ID GENERATION WITH xid:
// xid.NewWithTime embeds the creation timestamp in the first four bytes, so
// ids sort by creation time, and its counter keeps two tickets created in
// the same millisecond distinct.
func (r *TicketRepo) Create(ctx context.Context, ticket *model.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := r.load(ctx)
	if err != nil {
		return err
	}

	now := r.clock.Now()
	ticket.ID = xid.NewWithTime(now).String()
	ticket.CreatedAt = now.UTC().Truncate(time.Millisecond)

	return saveJSON(ctx, r.store, KeyTickets, append(tickets, *ticket))
}

// Update keeps the stored ID and CreatedAt whatever the caller passes.
func (r *TicketRepo) Update(ctx context.Context, ticket *model.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := r.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(tickets, ticket.ID)
	if i < 0 {
		return apperror.NotFound("ticket", ticket.ID)
	}

	ticket.CreatedAt = tickets[i].CreatedAt
	tickets[i] = *ticket
	return saveJSON(ctx, r.store, KeyTickets, tickets)
}

func (r *TicketRepo) Delete(ctx context.Context, id string) ([]model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	remaining := make([]model.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.ID != id {
			remaining = append(remaining, t)
		}
	}
	if err := saveJSON(ctx, r.store, KeyTickets, remaining); err != nil {
		return nil, err
	}
	return remaining, nil
}

func indexOf(tickets []model.Ticket, id string) int {
	for i := range tickets {
		if tickets[i].ID == id {
			return i
		}
	}
	return -1
}
