package service

import (
	"strings"
	"unicode/utf8"

	"github.com/sakif/ticketflow/internal/apperror"
	"github.com/sakif/ticketflow/internal/model"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
)

// Messages shown to users. They match what the web client has always
// displayed, so the client can show them verbatim.
const (
	msgTitleRequired   = "Title is required"
	msgTitleTooLong    = "Title must be less than 100 characters"
	msgDescTooLong     = "Description must be less than 500 characters"
	msgStatusInvalid   = "Status must be open, in_progress, or closed"
	msgPriorityInvalid = "Priority must be low, medium, or high"
)

// TicketInput carries the fields of a new ticket.
type TicketInput struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Status      model.TicketStatus   `json:"status"`
	Priority    model.TicketPriority `json:"priority,omitempty"`
}

// TicketPatch carries the fields to change on an existing ticket. A nil
// field is left alone. A non-nil empty Priority clears the priority.
type TicketPatch struct {
	Title       *string               `json:"title,omitempty"`
	Description *string               `json:"description,omitempty"`
	Status      *model.TicketStatus   `json:"status,omitempty"`
	Priority    *model.TicketPriority `json:"priority,omitempty"`
}

// validator collects every field failure instead of stopping at the first.
type validator struct {
	problems []apperror.FieldError
}

func (v *validator) fail(field, message string) {
	v.problems = append(v.problems, apperror.FieldError{Field: field, Message: message})
}

// err returns nil when nothing failed. The explicit nil keeps a typed nil
// *AppError from escaping as a non-nil error.
func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return apperror.Invalid(v.problems...)
}

func (v *validator) title(raw string) string {
	title := strings.TrimSpace(raw)
	switch {
	case title == "":
		v.fail("title", msgTitleRequired)
	case utf8.RuneCountInString(title) > maxTitleLen:
		v.fail("title", msgTitleTooLong)
	}
	return title
}

func (v *validator) description(raw string) string {
	desc := strings.TrimSpace(raw)
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		v.fail("description", msgDescTooLong)
	}
	return desc
}

func (v *validator) status(s model.TicketStatus) {
	if !s.Valid() {
		v.fail("status", msgStatusInvalid)
	}
}

func (v *validator) priority(p model.TicketPriority) {
	if p != "" && !p.Valid() {
		v.fail("priority", msgPriorityInvalid)
	}
}

// normalizeInput trims and checks a full ticket input.
func normalizeInput(in TicketInput) (TicketInput, error) {
	var v validator
	in.Title = v.title(in.Title)
	in.Description = v.description(in.Description)
	v.status(in.Status)
	v.priority(in.Priority)
	return in, v.err()
}

// normalizePatch trims and checks only the fields present in p.
func normalizePatch(p TicketPatch) (TicketPatch, error) {
	var v validator
	if p.Title != nil {
		t := v.title(*p.Title)
		p.Title = &t
	}
	if p.Description != nil {
		d := v.description(*p.Description)
		p.Description = &d
	}
	if p.Status != nil {
		v.status(*p.Status)
	}
	if p.Priority != nil {
		v.priority(*p.Priority)
	}
	return p, v.err()
}

// apply merges p into t. ID and CreatedAt are never touched.
func (p TicketPatch) apply(t *model.Ticket) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
}
