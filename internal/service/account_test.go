package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sakif/ticketflow/internal/apperror"
	"github.com/sakif/ticketflow/internal/clock"
	"github.com/sakif/ticketflow/internal/model"
	"github.com/sakif/ticketflow/internal/repository/kv"
	"github.com/sakif/ticketflow/internal/storage"
	"github.com/sakif/ticketflow/internal/storage/memory"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// prefixHasher stores "hashed:"+plaintext so tests can see the hasher ran.
type prefixHasher struct{}

func (prefixHasher) Hash(plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (prefixHasher) Verify(stored, plaintext string) error {
	if stored != "hashed:"+plaintext {
		return errors.New("mismatch")
	}
	return nil
}

// failingStorage simulates a broken medium. Reads succeed from the wrapped
// store until failReads is set; writes fail whenever failWrites is set, or
// only for failKey when that is set.
type failingStorage struct {
	storage.Storage
	failReads  bool
	failWrites bool
	failKey    string
}

var errMediumDown = errors.New("medium unavailable")

func (f *failingStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failReads {
		return "", false, errMediumDown
	}
	return f.Storage.Get(ctx, key)
}

func (f *failingStorage) Set(ctx context.Context, key, value string) error {
	if f.failWrites || key == f.failKey {
		return errMediumDown
	}
	return f.Storage.Set(ctx, key, value)
}

func (f *failingStorage) Remove(ctx context.Context, key string) error {
	if f.failWrites {
		return errMediumDown
	}
	return f.Storage.Remove(ctx, key)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// newTestAccountService wires an AccountService over store with the given
// simulated latency and a fake clock.
func newTestAccountService(t *testing.T, store storage.Storage, latency time.Duration) (*AccountService, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(testEpoch)
	svc := NewAccountService(
		kv.NewAccountRepo(store),
		kv.NewSessionRepo(store),
		prefixHasher{},
		clk,
		latency,
		testLogger(),
	)
	return svc, clk
}

// accountCount decodes the stored account collection and counts it.
func accountCount(t *testing.T, store storage.Storage) int {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), kv.KeyAccounts)
	if err != nil {
		t.Fatalf("reading accounts: %v", err)
	}
	if !ok {
		return 0
	}
	var accounts []model.Account
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		t.Fatalf("decoding accounts: %v", err)
	}
	return len(accounts)
}

// currentSession calls CurrentSession and fails the test on a storage error.
func currentSession(t *testing.T, svc *AccountService) *model.Session {
	t.Helper()
	s, err := svc.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession() error = %v", err)
	}
	return s
}

// =========================================================================
// Register / Authenticate
// =========================================================================

func TestRegisterThenAuthenticate(t *testing.T) {
	tests := []struct {
		email, password, name string
	}{
		{"ada@example.com", "secret1", "Ada Lovelace"},
		{"grace@example.com", "p@ss w0rd with spaces", "Grace"},
		{"linus@example.org", "ünïcødé", "Linus"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			ctx := context.Background()
			svc, _ := newTestAccountService(t, memory.New(), 0)

			reg, err := svc.Register(ctx, tt.email, tt.password, tt.name)
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if reg.Email != tt.email || reg.Name != tt.name {
				t.Errorf("Register() session = %+v", reg)
			}

			if err := svc.EndSession(ctx); err != nil {
				t.Fatalf("EndSession() error = %v", err)
			}

			got, err := svc.Authenticate(ctx, tt.email, tt.password)
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if got.Email != tt.email || got.Name != tt.name {
				t.Errorf("Authenticate() session = %+v, want email %q name %q", got, tt.email, tt.name)
			}
		})
	}
}

func TestRegister_StoresHashedPassword(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, _ := newTestAccountService(t, store, 0)

	if _, err := svc.Register(ctx, "a@b.co", "secret1", "A"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	acc, err := kv.NewAccountRepo(store).FindByEmail(ctx, "a@b.co")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if acc.Password != "hashed:secret1" {
		t.Errorf("stored password = %q, want the hasher's output", acc.Password)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, _ := newTestAccountService(t, store, 0)

	if _, err := svc.Register(ctx, "dup@example.com", "secret1", "First"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	before := accountCount(t, store)

	_, err := svc.Register(ctx, "dup@example.com", "other12", "Second")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Register() duplicate error = %v, want ErrConflict", err)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Message != "User already exists with this email" {
		t.Errorf("duplicate message = %v", err)
	}
	if after := accountCount(t, store); after != before {
		t.Errorf("account count changed from %d to %d", before, after)
	}
}

func TestRegister_EmptyEmail(t *testing.T) {
	svc, _ := newTestAccountService(t, memory.New(), 0)

	_, err := svc.Register(context.Background(), "", "secret1", "A")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Register() error = %v, want ErrValidation", err)
	}
}

func TestAuthenticate_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccountService(t, memory.New(), 0)
	if _, err := svc.Register(ctx, "ada@example.com", "secret1", "Ada"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := svc.EndSession(ctx); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "ada@example.com", "secret2"},
		{"unknown email", "bob@example.com", "secret1"},
		{"email differs in case", "ADA@example.com", "secret1"},
		{"empty password", "ada@example.com", ""},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.email, tt.password)
			if !errors.Is(err, apperror.ErrInvalidCredentials) {
				t.Fatalf("Authenticate() error = %v, want ErrInvalidCredentials", err)
			}
			messages = append(messages, err.Error())
			if currentSession(t, svc) != nil {
				t.Error("failed sign-in must not create a session")
			}
		})
	}

	for _, m := range messages {
		if m != messages[0] {
			t.Errorf("messages differ: %q vs %q; unknown email and wrong password must look alike", m, messages[0])
		}
	}
}

func TestAuthenticate_SimulatedLatency(t *testing.T) {
	ctx := context.Background()
	svc, clk := newTestAccountService(t, memory.New(), 500*time.Millisecond)

	if _, err := svc.Register(ctx, "a@b.co", "secret1", "A"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "a@b.co", "nope!!"); err == nil {
		t.Fatal("Authenticate() with wrong password succeeded")
	}

	slept := clk.Slept()
	if len(slept) != 2 {
		t.Fatalf("Sleep called %d times, want 2 (register + authenticate)", len(slept))
	}
	for _, d := range slept {
		if d != 500*time.Millisecond {
			t.Errorf("slept %v, want 500ms", d)
		}
	}
	if got := clk.Now().Sub(testEpoch); got != time.Second {
		t.Errorf("fake clock advanced %v, want 1s", got)
	}
}

func TestRegister_StorageFailure(t *testing.T) {
	store := &failingStorage{Storage: memory.New(), failWrites: true}
	svc, _ := newTestAccountService(t, store, 0)

	_, err := svc.Register(context.Background(), "a@b.co", "secret1", "A")
	if !errors.Is(err, errMediumDown) {
		t.Fatalf("Register() error = %v, want the storage error", err)
	}
	if currentSession(t, svc) != nil {
		t.Error("session set despite storage failure")
	}
}

// The account write succeeds and the session write fails: the account is
// kept, so a retry of Register conflicts and Authenticate is the way in.
func TestRegister_SessionWriteFails(t *testing.T) {
	ctx := context.Background()
	store := &failingStorage{Storage: memory.New(), failKey: kv.KeySession}
	svc, _ := newTestAccountService(t, store, 0)

	if _, err := svc.Register(ctx, "a@b.co", "secret1", "A"); !errors.Is(err, errMediumDown) {
		t.Fatalf("Register() error = %v, want the storage error", err)
	}
	if n := accountCount(t, store); n != 1 {
		t.Fatalf("account count = %d, want the account kept", n)
	}
	if currentSession(t, svc) != nil {
		t.Error("session set despite the failed write")
	}

	if _, err := svc.Register(ctx, "a@b.co", "secret1", "A"); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("retried Register() error = %v, want ErrConflict", err)
	}

	store.failKey = ""
	s, err := svc.Authenticate(ctx, "a@b.co", "secret1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if s.Email != "a@b.co" {
		t.Errorf("Authenticate() session = %+v", s)
	}
}

// =========================================================================
// External sign-in
// =========================================================================

func TestAuthenticateExternal_RegistersOnceThenReuses(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, _ := newTestAccountService(t, store, 0)

	first, err := svc.AuthenticateExternal(ctx, "octo@github.com", "Octo Cat")
	if err != nil {
		t.Fatalf("AuthenticateExternal() error = %v", err)
	}
	if first.Name != "Octo Cat" {
		t.Errorf("Name = %q, want %q", first.Name, "Octo Cat")
	}

	second, err := svc.AuthenticateExternal(ctx, "octo@github.com", "Renamed")
	if err != nil {
		t.Fatalf("second AuthenticateExternal() error = %v", err)
	}
	if second.Name != "Octo Cat" {
		t.Errorf("existing account should be reused, got name %q", second.Name)
	}
	if n := accountCount(t, store); n != 1 {
		t.Errorf("account count = %d, want 1", n)
	}

	// A password-less account can never sign in with a password.
	if _, err := svc.Authenticate(ctx, "octo@github.com", ""); !errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Errorf("Authenticate() on external account error = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateExternal_ReusesPasswordAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccountService(t, memory.New(), 0)

	if _, err := svc.Register(ctx, "ada@example.com", "secret1", "Ada"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	s, err := svc.AuthenticateExternal(ctx, "ada@example.com", "ada-gh")
	if err != nil {
		t.Fatalf("AuthenticateExternal() error = %v", err)
	}
	if s.Name != "Ada" {
		t.Errorf("Name = %q, want the registered name", s.Name)
	}
}

func TestAuthenticateExternal_EmptyEmailAndName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccountService(t, memory.New(), 0)

	if _, err := svc.AuthenticateExternal(ctx, "", "x"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty email error = %v, want ErrValidation", err)
	}

	s, err := svc.AuthenticateExternal(ctx, "noname@example.com", "")
	if err != nil {
		t.Fatalf("AuthenticateExternal() error = %v", err)
	}
	if s.Name != "noname@example.com" {
		t.Errorf("Name = %q, want email as fallback", s.Name)
	}
}

// =========================================================================
// Session lifecycle
// =========================================================================

func TestEndSession(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc, _ := newTestAccountService(t, store, 0)

	// Ending when nobody is signed in is fine.
	if err := svc.EndSession(ctx); err != nil {
		t.Fatalf("EndSession() with no session error = %v", err)
	}

	if _, err := svc.Register(ctx, "a@b.co", "secret1", "A"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if currentSession(t, svc) == nil {
		t.Fatal("CurrentSession() = nil after Register()")
	}

	if err := svc.EndSession(ctx); err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if currentSession(t, svc) != nil {
		t.Error("CurrentSession() not nil after EndSession()")
	}
	if _, ok, _ := store.Get(ctx, kv.KeySession); ok {
		t.Error("persisted session still present after EndSession()")
	}
}

func TestRestoreSession_AfterRestart(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	first, _ := newTestAccountService(t, store, 0)
	if _, err := first.Register(ctx, "a@b.co", "secret1", "A"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// A new service over the same medium simulates a process restart.
	second, _ := newTestAccountService(t, store, 0)

	s, err := second.RestoreSession(ctx)
	if err != nil {
		t.Fatalf("RestoreSession() error = %v", err)
	}
	want := model.Session{Email: "a@b.co", Name: "A"}
	if s == nil || *s != want {
		t.Fatalf("RestoreSession() = %+v, want %+v", s, want)
	}
	if cur := currentSession(t, second); cur == nil || *cur != want {
		t.Errorf("CurrentSession() = %+v, want %+v", cur, want)
	}
}

// Two services over one medium stand for two server instances sharing a
// database: a sign-in or sign-out on one is seen by the other at once.
func TestSession_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a, _ := newTestAccountService(t, store, 0)
	b, _ := newTestAccountService(t, store, 0)

	if _, err := a.Register(ctx, "ada@example.com", "secret1", "Ada"); err != nil {
		t.Fatalf("Register() on a error = %v", err)
	}
	want := model.Session{Email: "ada@example.com", Name: "Ada"}
	if cur := currentSession(t, b); cur == nil || *cur != want {
		t.Fatalf("b.CurrentSession() after sign-in on a = %+v, want %+v", cur, want)
	}

	if err := a.EndSession(ctx); err != nil {
		t.Fatalf("EndSession() on a error = %v", err)
	}
	if cur := currentSession(t, b); cur != nil {
		t.Fatalf("b.CurrentSession() after sign-out on a = %+v, want nil", cur)
	}

	if _, err := b.Register(ctx, "grace@example.com", "secret1", "Grace"); err != nil {
		t.Fatalf("Register() on b error = %v", err)
	}
	if cur := currentSession(t, a); cur == nil || cur.Email != "grace@example.com" {
		t.Errorf("a.CurrentSession() after sign-in on b = %+v, want grace", cur)
	}
}

func TestCurrentSession_StorageFailure(t *testing.T) {
	store := &failingStorage{Storage: memory.New(), failReads: true}
	svc, _ := newTestAccountService(t, store, 0)

	if _, err := svc.CurrentSession(context.Background()); !errors.Is(err, errMediumDown) {
		t.Fatalf("CurrentSession() error = %v, want the storage error", err)
	}
}

func TestRestoreSession_Corrupt(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := store.Set(ctx, kv.KeySession, "{definitely not json"); err != nil {
		t.Fatal(err)
	}

	svc, _ := newTestAccountService(t, store, 0)
	s, err := svc.RestoreSession(ctx)
	if err != nil {
		t.Fatalf("RestoreSession() error = %v, want nil for corrupt data", err)
	}
	if s != nil {
		t.Errorf("RestoreSession() = %+v, want nil", s)
	}
	if _, ok, _ := store.Get(ctx, kv.KeySession); ok {
		t.Error("corrupt session was not cleared")
	}
}

func TestRestoreSession_StorageFailure(t *testing.T) {
	store := &failingStorage{Storage: memory.New(), failReads: true}
	svc, _ := newTestAccountService(t, store, 0)

	_, err := svc.RestoreSession(context.Background())
	if err == nil || !strings.Contains(err.Error(), "restoring session") {
		t.Fatalf("RestoreSession() error = %v, want wrapped storage error", err)
	}
}

func TestCurrentSession_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccountService(t, memory.New(), 0)
	if _, err := svc.Register(ctx, "a@b.co", "secret1", "A"); err != nil {
		t.Fatal(err)
	}

	s := currentSession(t, svc)
	s.Name = "mutated"

	if got := currentSession(t, svc).Name; got != "A" {
		t.Errorf("CurrentSession().Name = %q; callers must not mutate service state", got)
	}
}
