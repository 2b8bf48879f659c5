package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sakif/ticketflow/internal/apperror"
	"github.com/sakif/ticketflow/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "token"

// SessionSource reports the signed-in session, or nil. The account service
// satisfies it; the interface keeps this package free of a service import.
type SessionSource interface {
	CurrentSession(ctx context.Context) (*model.Session, error)
}

// ErrorWriter sends err as the HTTP response. The handler package provides
// the one the server uses, so rejected requests share the API error format.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// contextKey is unexported so no other package can read or shadow values
// stored under it.
type contextKey string

const sessionKey contextKey = "session"

// RequireSession guards routes that need a signed-in user.
//
// A request passes only when:
//  1. it carries a valid token (cookie, or "Authorization: Bearer <jwt>")
//  2. a session is currently active
//  3. the token's subject is that session's email
//
// Rule 3 is what makes logout effective: once the session ends, every token
// issued for it stops working even though the JWT itself has not expired.
//
// On success the session is stored in the request context; read it with
// SessionFromContext. Otherwise fail receives an apperror.ErrUnauthorized,
// or the storage error when the session could not be read.
func RequireSession(tokens *TokenService, sessions SessionSource, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := tokens.Validate(tokenFromRequest(r))
			if err != nil {
				fail(w, r, apperror.Unauthorized("valid authentication required"))
				return
			}

			session, err := sessions.CurrentSession(r.Context())
			if err != nil {
				fail(w, r, fmt.Errorf("auth: checking session: %w", err))
				return
			}
			if session == nil || session.Email != email {
				fail(w, r, apperror.Unauthorized("session has ended, please sign in again"))
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, *session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by RequireSession.
func SessionFromContext(ctx context.Context) (model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(model.Session)
	return s, ok
}

// tokenFromRequest prefers the cookie and falls back to a bearer header,
// which non-browser clients find easier to send.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
