// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. The `json:"..."` struct tags
// define the persisted shape, which must stay compatible with the records
// already written under the ticketapp_* storage keys.
package model

// Account is a registered user.
//
// Email is the unique key of the account collection. Password holds whatever
// the configured password hasher produced: the plaintext itself by default,
// a bcrypt hash when hashing is enabled, or "" for accounts created through
// an external identity provider (those can never log in with a password).
//
// Accounts are immutable once registered.
type Account struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Session is the account projection kept for the signed-in user.
// It never carries the password.
type Session struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session derives the session for this account.
func (a Account) Session() Session {
	return Session{Email: a.Email, Name: a.Name}
}
