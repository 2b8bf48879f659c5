// Package kv implements the repository interfaces on a storage.Storage medium.
//
// STORAGE LAYOUT:
// Every collection is one JSON document under a fixed key:
//
//	ticketapp_users    → [{"email","password","name"}, ...]
//	ticketapp_session  → {"email","name"}            (absent when signed out)
//	tickets            → [Ticket, ...]               (insertion order)
//
// These keys and shapes are the compatibility contract with data already
// written by earlier versions of the app, so they must not change.
//
// READ-MODIFY-WRITE:
// Each mutation loads the whole collection, changes it in memory and writes
// it back with one Set. The medium has no transactions, so every repository
// holds a mutex across that cycle.
package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sakif/ticketflow/internal/storage"
)

const (
	KeyAccounts = "ticketapp_users"
	KeySession  = "ticketapp_session"
	KeyTickets  = "tickets"
)

// loadJSON decodes the document under key into dst.
// found is false when the key is absent, in which case dst is untouched.
func loadJSON(ctx context.Context, s storage.Storage, key string, dst any) (found bool, err error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("kv: reading %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("kv: decoding %s: %w", key, err)
	}
	return true, nil
}

// saveJSON encodes v and writes it under key.
func saveJSON(ctx context.Context, s storage.Storage, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encoding %s: %w", key, err)
	}
	if err := s.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("kv: writing %s: %w", key, err)
	}
	return nil
}
