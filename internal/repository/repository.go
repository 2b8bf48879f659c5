// Package repository defines the persistence interfaces the services depend
// on. The only implementation lives in repository/kv, which stores each
// collection as one JSON document on a storage.Storage medium.
package repository

import (
	"context"

	"github.com/sakif/ticketflow/internal/model"
)

// AccountRepository persists the registered accounts.
type AccountRepository interface {
	// FindByEmail returns apperror.ErrNotFound when no account has that exact email.
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	// Create appends the account. It returns apperror.ErrConflict when the
	// email is already registered and leaves the collection unchanged.
	Create(ctx context.Context, account *model.Account) error
}

// SessionRepository persists the single current session.
type SessionRepository interface {
	// Get returns (nil, nil) when no session is stored. A stored session that
	// cannot be decoded is cleared and also reported as (nil, nil).
	Get(ctx context.Context) (*model.Session, error)
	Put(ctx context.Context, session model.Session) error
	Clear(ctx context.Context) error
}

// TicketRepository persists the ticket collection in insertion order.
type TicketRepository interface {
	List(ctx context.Context) ([]model.Ticket, error)
	// GetByID returns apperror.ErrNotFound for an unknown id.
	GetByID(ctx context.Context, id string) (*model.Ticket, error)
	// Create assigns ID and CreatedAt, then appends the ticket.
	Create(ctx context.Context, ticket *model.Ticket) error
	// Update replaces the stored ticket with the same ID, keeping its
	// position, ID and CreatedAt. It returns apperror.ErrNotFound for an
	// unknown id.
	Update(ctx context.Context, ticket *model.Ticket) error
	// Delete removes the ticket if present and returns what remains. An
	// unknown id is not an error; the collection is still written back.
	Delete(ctx context.Context, id string) ([]model.Ticket, error)
}
