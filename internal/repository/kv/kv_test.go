package kv

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ticketflow/internal/apperror"
	"github.com/sakif/ticketflow/internal/clock"
	"github.com/sakif/ticketflow/internal/model"
	"github.com/sakif/ticketflow/internal/storage/memory"
	"github.com/sakif/ticketflow/internal/storage/sqlite"
)

var epoch = time.Date(2025, 3, 1, 10, 4, 5, 123456789, time.UTC)

// --- accounts ---

func TestAccountRepo_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo(memory.New())

	acc := &model.Account{Email: "ada@example.com", Password: "secret1", Name: "Ada"}
	require.NoError(t, repo.Create(ctx, acc))

	got, err := repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, *acc, *got)

	_, err = repo.FindByEmail(ctx, "ADA@example.com")
	assert.True(t, errors.Is(err, apperror.ErrNotFound), "email match must be exact")
}

func TestAccountRepo_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo(memory.New())

	require.NoError(t, repo.Create(ctx, &model.Account{Email: "a@b.co", Password: "x", Name: "A"}))
	err := repo.Create(ctx, &model.Account{Email: "a@b.co", Password: "y", Name: "B"})

	assert.True(t, errors.Is(err, apperror.ErrConflict))
	accounts, err := repo.load(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestAccountRepo_PersistedLayout(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := NewAccountRepo(store)

	require.NoError(t, repo.Create(ctx, &model.Account{Email: "a@b.co", Password: "pw1234", Name: "A"}))

	raw, ok, err := store.Get(ctx, KeyAccounts)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"email":"a@b.co","password":"pw1234","name":"A"}]`, raw)
}

func TestAccountRepo_CorruptCollection(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, KeyAccounts, "{not json"))

	_, err := NewAccountRepo(store).FindByEmail(ctx, "a@b.co")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrNotFound))
}

// --- session ---

func TestSessionRepo_PutGetClear(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepo(memory.New())

	s, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, repo.Put(ctx, model.Session{Email: "a@b.co", Name: "A"}))
	s, err = repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, model.Session{Email: "a@b.co", Name: "A"}, *s)

	require.NoError(t, repo.Clear(ctx))
	s, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSessionRepo_CorruptValueIsCleared(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{oops"},
		{"wrong shape", `["a","b"]`},
		{"missing email", `{"name":"A"}`},
		{"json null", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			require.NoError(t, store.Set(ctx, KeySession, tt.raw))

			s, err := NewSessionRepo(store).Get(ctx)
			require.NoError(t, err)
			assert.Nil(t, s)

			_, ok, _ := store.Get(ctx, KeySession)
			assert.False(t, ok, "corrupt session should be removed")
		})
	}
}

// --- tickets ---

func TestTicketRepo_ListEmpty(t *testing.T) {
	repo := NewTicketRepo(memory.New(), clock.Fake(epoch))

	tickets, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tickets)
	assert.Empty(t, tickets)
}

func TestTicketRepo_CreateAssignsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(epoch)
	repo := NewTicketRepo(memory.New(), clk)

	a := &model.Ticket{Title: "Fix login", Status: model.StatusOpen}
	b := &model.Ticket{Title: "Fix logout", Status: model.StatusOpen}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID, "same-instant tickets still get distinct ids")
	assert.Equal(t, epoch.Truncate(time.Millisecond), a.CreatedAt)

	tickets, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "Fix login", tickets[0].Title)
	assert.Equal(t, "Fix logout", tickets[1].Title)
}

func TestTicketRepo_CreatedAtIsISO8601(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := NewTicketRepo(store, clock.Fake(epoch))

	tk := &model.Ticket{Title: "T", Status: model.StatusOpen}
	require.NoError(t, repo.Create(ctx, tk))

	raw, _, err := store.Get(ctx, KeyTickets)
	require.NoError(t, err)
	assert.Contains(t, raw, `"createdAt":"2025-03-01T10:04:05.123Z"`)
	assert.NotContains(t, raw, `"priority"`, "unset priority is omitted")
}

func TestTicketRepo_CreatedAtKeepsZeroMillis(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	whole := time.Date(2025, 3, 1, 10, 4, 5, 0, time.UTC)
	repo := NewTicketRepo(store, clock.Fake(whole))

	tk := &model.Ticket{Title: "T", Status: model.StatusOpen}
	require.NoError(t, repo.Create(ctx, tk))

	raw, _, err := store.Get(ctx, KeyTickets)
	require.NoError(t, err)
	assert.Contains(t, raw, `"createdAt":"2025-03-01T10:04:05.000Z"`)

	got, err := repo.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, whole.Equal(got.CreatedAt))
}

func TestTicketRepo_UpdateKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fake(epoch)
	repo := NewTicketRepo(memory.New(), clk)

	tk := &model.Ticket{Title: "T", Status: model.StatusOpen}
	require.NoError(t, repo.Create(ctx, tk))
	created := tk.CreatedAt

	clk.Advance(time.Hour)
	changed := *tk
	changed.Status = model.StatusClosed
	changed.CreatedAt = clk.Now()
	require.NoError(t, repo.Update(ctx, &changed))

	got, err := repo.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, got.Status)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestTicketRepo_UpdateUnknown(t *testing.T) {
	repo := NewTicketRepo(memory.New(), clock.Fake(epoch))

	err := repo.Update(context.Background(), &model.Ticket{ID: "nope", Title: "T", Status: model.StatusOpen})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestTicketRepo_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := NewTicketRepo(store, clock.Fake(epoch))

	keep := &model.Ticket{Title: "keep", Status: model.StatusOpen}
	drop := &model.Ticket{Title: "drop", Status: model.StatusOpen}
	require.NoError(t, repo.Create(ctx, keep))
	require.NoError(t, repo.Create(ctx, drop))

	remaining, err := repo.Delete(ctx, drop.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)

	remaining, err = repo.Delete(ctx, drop.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	// Deleting from an absent collection still writes it back.
	empty := memory.New()
	remaining, err = NewTicketRepo(empty, clock.Fake(epoch)).Delete(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, remaining)
	raw, ok, _ := empty.Get(ctx, KeyTickets)
	assert.True(t, ok)
	assert.Equal(t, "[]", raw)
}

// TestTicketRepo_RoundTripAcrossRestart reloads the collection through a
// brand-new repository on a reopened SQLite file.
func TestTicketRepo_RoundTripAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tickets.db")
	clk := clock.Fake(epoch)

	db, err := sqlite.New(path)
	require.NoError(t, err)
	repo := NewTicketRepo(db, clk)
	for _, in := range []model.Ticket{
		{Title: "one", Status: model.StatusOpen, Priority: model.PriorityHigh},
		{Title: "two", Description: "second", Status: model.StatusInProgress},
		{Title: "three", Status: model.StatusClosed, Priority: model.PriorityLow},
	} {
		tk := in
		require.NoError(t, repo.Create(ctx, &tk))
		clk.Advance(time.Second)
	}
	before, err := repo.List(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	after, err := NewTicketRepo(reopened, clock.Real()).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
