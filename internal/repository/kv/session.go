package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sakif/ticketflow/internal/model"
	"github.com/sakif/ticketflow/internal/repository"
	"github.com/sakif/ticketflow/internal/storage"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo stores the single session object under KeySession.
type SessionRepo struct {
	store storage.Storage
}

func NewSessionRepo(store storage.Storage) *SessionRepo {
	return &SessionRepo{store: store}
}

// Get is a self-healing read.
//
// A value that is not a JSON object with a non-empty email is treated as
// corrupt: the key is removed and Get reports no session. Only a failure of
// the storage medium itself is returned as an error.
func (r *SessionRepo) Get(ctx context.Context) (*model.Session, error) {
	raw, ok, err := r.store.Get(ctx, KeySession)
	if err != nil {
		return nil, fmt.Errorf("kv: reading %s: %w", KeySession, err)
	}
	if !ok {
		return nil, nil
	}

	var s model.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Email == "" {
		if err := r.store.Remove(ctx, KeySession); err != nil {
			return nil, fmt.Errorf("kv: clearing corrupt %s: %w", KeySession, err)
		}
		return nil, nil
	}
	return &s, nil
}

func (r *SessionRepo) Put(ctx context.Context, session model.Session) error {
	return saveJSON(ctx, r.store, KeySession, session)
}

func (r *SessionRepo) Clear(ctx context.Context) error {
	if err := r.store.Remove(ctx, KeySession); err != nil {
		return fmt.Errorf("kv: clearing %s: %w", KeySession, err)
	}
	return nil
}
