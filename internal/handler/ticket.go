package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/ticketflow/internal/auth"
	"github.com/sakif/ticketflow/internal/model"
	"github.com/sakif/ticketflow/internal/service"
)

// TicketService is the part of service.TicketService the handlers use.
type TicketService interface {
	List(ctx context.Context) ([]model.Ticket, error)
	Get(ctx context.Context, id string) (*model.Ticket, error)
	Create(ctx context.Context, in service.TicketInput) (*model.Ticket, error)
	Update(ctx context.Context, id string, p service.TicketPatch) (*model.Ticket, error)
	Delete(ctx context.Context, id string) ([]model.Ticket, error)
	Filter(ctx context.Context, status string) ([]model.Ticket, error)
	Stats(ctx context.Context) (model.TicketStats, error)
}

// TicketHandler serves the ticket CRUD routes and the dashboard.
// Every route sits behind RequireSession.
type TicketHandler struct {
	tickets TicketService
	logger  *slog.Logger
}

func NewTicketHandler(tickets TicketService, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{tickets: tickets, logger: logger}
}

// HandleList returns the tickets, optionally filtered by status.
//
// HTTP: GET /api/tickets?status=open|in_progress|closed|all
func (h *TicketHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.Filter(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

// HandleGet returns one ticket.
//
// HTTP: GET /api/tickets/{id}
func (h *TicketHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.tickets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleCreate creates a ticket.
//
// HTTP: POST /api/tickets
// REQUEST BODY: {"title","description","status","priority"}
// RESPONSE: 201 with the stored ticket, including its id and createdAt
func (h *TicketHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.TicketInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	t, err := h.tickets.Create(r.Context(), in)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// HandleUpdate merges the given fields into a ticket.
//
// HTTP: PUT or PATCH /api/tickets/{id}
//
// Both verbs merge: fields missing from the body keep their value. The
// web form always sends every field, so for it PUT behaves as a replace.
func (h *TicketHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var p service.TicketPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, err)
		return
	}

	t, err := h.tickets.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleDelete removes a ticket and returns the remaining ones.
//
// HTTP: DELETE /api/tickets/{id}
//
// Deleting an unknown id is not an error: the response is 200 with the
// unchanged collection.
func (h *TicketHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	remaining, err := h.tickets.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, remaining)
}

// dashboardResponse is the body of GET /api/dashboard.
type dashboardResponse struct {
	Session model.Session     `json:"session"`
	Stats   model.TicketStats `json:"stats"`
}

// HandleDashboard returns the signed-in session and the ticket stats.
//
// HTTP: GET /api/dashboard
func (h *TicketHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())

	stats, err := h.tickets.Stats(r.Context())
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{Session: session, Stats: stats})
}
