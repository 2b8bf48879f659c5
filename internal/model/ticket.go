package model

import (
	"encoding/json"
	"time"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusClosed     TicketStatus = "closed"
)

// StatusAll is the filter value that selects every ticket.
const StatusAll = "all"

// Valid reports whether s is one of the three known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// TicketPriority is optional; the empty value means "not set".
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Ticket is a single support ticket.
//
// ID and CreatedAt are assigned on creation and never change afterwards.
// CreatedAt is stored in UTC with millisecond precision and always encodes
// with three fractional digits, like "2025-03-01T10:04:05.000Z".
type Ticket struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// createdAtLayout is RFC 3339 with exactly three fractional digits.
const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// MarshalJSON writes CreatedAt with createdAtLayout. time.Time's own encoding
// drops trailing zero fractions, so a whole-second timestamp would lose ".000".
func (t Ticket) MarshalJSON() ([]byte, error) {
	type plain Ticket
	return json.Marshal(struct {
		plain
		CreatedAt string `json:"createdAt"`
	}{plain(t), t.CreatedAt.UTC().Format(createdAtLayout)})
}

// TicketStats is the dashboard summary of the ticket collection.
type TicketStats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"inProgress"`
	Closed     int `json:"closed"`
	// Outstanding is Open + InProgress.
	Outstanding int `json:"outstanding"`
	// ResolutionRate is the rounded percentage of closed tickets, 0 when
	// there are no tickets.
	ResolutionRate int `json:"resolutionRate"`
}
