// Package service holds the business rules of the app.
//
// LAYERING:
//
//	Handler (HTTP) → Service (rules, locking, logging) → Repository (kv) → Storage
//
// Services never see HTTP and never touch the storage medium directly; they
// work on repository interfaces so tests can swap in fakes or memory storage.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/ticketflow/internal/apperror"
	"github.com/sakif/ticketflow/internal/clock"
	"github.com/sakif/ticketflow/internal/model"
	"github.com/sakif/ticketflow/internal/repository"
)

// PasswordHasher turns a plaintext password into its stored form and checks
// a candidate against it. Implementations live in the auth package.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify returns nil when plaintext matches stored.
	Verify(stored, plaintext string) error
}

// AccountService owns the account collection and the single current session.
//
// THE SESSION LIVES IN STORAGE:
// Register, Authenticate and AuthenticateExternal write the session record,
// EndSession removes it, and CurrentSession reads it back on every call.
// Nothing is cached in the service, so every instance running over the same
// medium (a shared MySQL database, say) agrees on who is signed in, and a
// sign-out on one instance is seen by all of them.
type AccountService struct {
	accounts  repository.AccountRepository
	sessions  repository.SessionRepository
	passwords PasswordHasher
	clock     clock.Clock
	// latency is the simulated round-trip paid by Register and Authenticate.
	latency time.Duration
	logger  *slog.Logger

	// mu serializes this instance's read-modify-write cycles on accounts.
	mu sync.Mutex
}

// NewAccountService wires an AccountService. A zero latency disables the
// simulated delay.
func NewAccountService(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	passwords PasswordHasher,
	clk clock.Clock,
	latency time.Duration,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		sessions:  sessions,
		passwords: passwords,
		clock:     clk,
		latency:   latency,
		logger:    logger,
	}
}

// Register creates an account and signs it in.
//
// Input shape (email format, password length, matching confirmation) is
// checked by the caller. Register only enforces email uniqueness: a taken
// email fails with apperror.ErrConflict and nothing is written.
func (s *AccountService) Register(ctx context.Context, email, password, name string) (*model.Session, error) {
	// The delay runs outside the lock so concurrent sign-ups wait in parallel.
	s.clock.Sleep(s.latency)

	if email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}

	stored, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/account: hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account := &model.Account{Email: email, Password: stored, Name: name}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("service/account: registering %s: %w", email, err)
	}

	// NO ROLLBACK:
	// The account is already stored when the session write runs. If that
	// write fails, Register returns the error but the account stays, so a
	// second Register with the same email is a conflict; the user signs in
	// with Authenticate instead.
	session, err := s.signIn(ctx, *account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered", slog.String("email", email))
	return session, nil
}

// Authenticate signs in an existing account.
//
// An unknown email and a wrong password fail identically with
// apperror.ErrInvalidCredentials, so a caller cannot tell which emails exist.
// Accounts created through GitHub have no password and never match here.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.Session, error) {
	s.clock.Sleep(s.latency)

	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("sign-in rejected", slog.String("email", email))
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/account: looking up %s: %w", email, err)
	}

	if account.Password == "" || s.passwords.Verify(account.Password, password) != nil {
		s.logger.Info("sign-in rejected", slog.String("email", email))
		return nil, apperror.InvalidCredentials()
	}

	session, err := s.signIn(ctx, *account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account signed in", slog.String("email", email))
	return session, nil
}

// AuthenticateExternal signs in a user whose identity was vouched for by an
// external provider (GitHub). A first-time email is registered on the spot
// with an empty password; an existing account is reused unchanged.
func (s *AccountService) AuthenticateExternal(ctx context.Context, email, name string) (*model.Session, error) {
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}
	if name == "" {
		name = email
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		account = &model.Account{Email: email, Name: name}
		if err := s.accounts.Create(ctx, account); err != nil {
			return nil, fmt.Errorf("service/account: registering external %s: %w", email, err)
		}
		s.logger.Info("account registered via external provider", slog.String("email", email))
	default:
		return nil, fmt.Errorf("service/account: looking up %s: %w", email, err)
	}

	session, err := s.signIn(ctx, *account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account signed in via external provider", slog.String("email", email))
	return session, nil
}

// EndSession signs out. It succeeds when nobody is signed in.
func (s *AccountService) EndSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("service/account: ending session: %w", err)
	}
	s.logger.Info("session ended")
	return nil
}

// RestoreSession is the start-up read of the persisted session. A corrupt
// stored session is cleared by the repository and comes back as nil; only
// a storage failure is an error.
func (s *AccountService) RestoreSession(ctx context.Context) (*model.Session, error) {
	session, err := s.sessions.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/account: restoring session: %w", err)
	}
	if session != nil {
		s.logger.Info("session restored", slog.String("email", session.Email))
	}
	return session, nil
}

// CurrentSession returns the signed-in session, or nil. Each call reads
// the medium and returns a fresh value the caller may keep.
func (s *AccountService) CurrentSession(ctx context.Context) (*model.Session, error) {
	session, err := s.sessions.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/account: reading session: %w", err)
	}
	return session, nil
}

// signIn persists the session derived from account. Caller holds s.mu.
func (s *AccountService) signIn(ctx context.Context, account model.Account) (*model.Session, error) {
	session := account.Session()
	if err := s.sessions.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("service/account: saving session: %w", err)
	}
	return &session, nil
}
