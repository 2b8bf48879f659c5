// Package handler contains the HTTP handlers of the ticket API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, query, JSON body)
//  2. Call the service layer
//  3. Write the response through writeJSON / writeError
//
// Handlers hold no business rules. They depend on small interfaces
// (AccountService, TicketService, OAuthProvider) so tests can swap them.
package handler

import (
	"net/http"
	"time"

	"github.com/sakif/ticketflow/internal/clock"
)

// HealthHandler answers liveness probes.
type HealthHandler struct {
	storage string
	clock   clock.Clock
	started time.Time
}

// NewHealthHandler reports storageDriver in every response.
func NewHealthHandler(storageDriver string, clk clock.Clock) *HealthHandler {
	return &HealthHandler{storage: storageDriver, clock: clk, started: clk.Now()}
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Uptime  string `json:"uptime"`
}

// HandleHealth reports that the process is serving.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Storage: h.storage,
		Uptime:  h.clock.Now().Sub(h.started).Round(time.Second).String(),
	})
}
