package auth

// PASSWORD STORAGE MODES:
// The account collection has always held passwords as typed, and existing
// data under ticketapp_users depends on that. Two hashers are provided:
//
//	PlaintextPasswords  stores the password unchanged (default, compatible)
//	PasswordService     stores a bcrypt hash (password_hashing: bcrypt)
//
// Switching an existing data set to bcrypt locks out accounts created under
// plaintext; there is no migration.
//
// bcrypt hash format:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 iterations)
//	 version

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/ticketflow/internal/apperror"
)

// errPasswordMismatch is what both hashers return from Verify on a miss.
var errPasswordMismatch = errors.New("auth: invalid password")

// PlaintextPasswords stores passwords as given.
type PlaintextPasswords struct{}

func (PlaintextPasswords) Hash(plaintext string) (string, error) {
	return plaintext, nil
}

// Verify compares in constant time so response timing does not leak how
// many leading bytes matched.
func (PlaintextPasswords) Verify(stored, plaintext string) error {
	if subtle.ConstantTimeCompare([]byte(stored), []byte(plaintext)) != 1 {
		return errPasswordMismatch
	}
	return nil
}

// defaultCost is the bcrypt work factor, roughly 250ms per hash on a
// modern server.
const defaultCost = 12

// maxBcryptBytes is bcrypt's input limit; longer input is silently
// truncated by the algorithm, so it is rejected instead.
const maxBcryptBytes = 72

// PasswordService hashes with bcrypt.
//
// It's a struct so the cost can be lowered in tests: cost 4 (the bcrypt
// minimum) keeps each hash in the millisecond range.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom cost.
// Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns a self-contained bcrypt string (salt and cost included).
// A password over 72 bytes fails with apperror.ErrValidation.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxBcryptBytes {
		return "", apperror.ValidationFailed("password", "Password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches the bcrypt hash. The comparison
// inside bcrypt is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
