package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/ticketflow/internal/apperror"
	"github.com/sakif/ticketflow/internal/auth"
	"github.com/sakif/ticketflow/internal/model"
)

// AccountService is the part of service.AccountService the handlers use.
type AccountService interface {
	Register(ctx context.Context, email, password, name string) (*model.Session, error)
	Authenticate(ctx context.Context, email, password string) (*model.Session, error)
	AuthenticateExternal(ctx context.Context, email, name string) (*model.Session, error)
	EndSession(ctx context.Context) error
}

// OAuthProvider is an external identity provider (GitHub).
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

const stateCookie = "oauth_state"

// AuthHandler serves sign-up, sign-in, sign-out and the GitHub OAuth flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup / HandleLogin → check the form, call the service, set the token cookie
//   - HandleLogout               → end the session, clear the cookie
//   - HandleSession              → report who is signed in
//   - HandleGitHubLogin/Callback → external sign-in
type AuthHandler struct {
	accounts AccountService
	tokens   *auth.TokenService
	github   OAuthProvider // nil when GitHub sign-in is not configured
	secure   bool          // set the Secure flag on cookies (HTTPS deployments)
	logger   *slog.Logger
}

func NewAuthHandler(
	accounts AccountService,
	tokens *auth.TokenService,
	github OAuthProvider,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		github:   github,
		secure:   secureCookies,
		logger:   logger,
	}
}

// HandleSignup registers an account and signs it in.
//
// HTTP: POST /api/auth/signup
// REQUEST BODY: {"name","email","password","confirmPassword"}
// RESPONSE: 201 {"email","name"} plus the token cookie
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.accounts.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.issueToken(w, session.Email); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email","password"}
// RESPONSE: 200 {"email","name"} plus the token cookie, or 401
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.issueToken(w, session.Email); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleLogout ends the session and deletes the cookie.
//
// HTTP: POST /api/auth/logout
//
// WHY POST AND NOT GET?
// Logout changes state. A GET could be triggered cross-site or by a
// browser prefetch.
//
// Ending the server-side session also invalidates every token issued for
// it, since RequireSession checks the token against the current session.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.EndSession(r.Context()); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	h.clearCookie(w, auth.CookieName)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleSession returns the signed-in session.
//
// HTTP: GET /api/auth/session
// Auth: Required; RequireSession puts the session in the context.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleGitHubLogin redirects the browser to GitHub.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived cookie and into the
// authorization URL. The callback only proceeds when the two match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Check the state parameter against the cookie (CSRF)
//  2. Exchange the code for the GitHub user
//  3. Sign in (registering on first visit) by email
//  4. Set the token cookie and redirect to the dashboard
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("github callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	// The state is single-use.
	h.clearCookie(w, stateCookie)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/login?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	session, err := h.accounts.AuthenticateExternal(r.Context(), ghUser.Email, ghUser.DisplayName())
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	if err := h.issueToken(w, session.Email); err != nil {
		fail(h.logger, w, r, err)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// issueToken signs a token for email and sets it as an HttpOnly cookie.
// HttpOnly keeps it away from page scripts; SameSite=Lax keeps it off
// cross-site POSTs.
func (h *AuthHandler) issueToken(w http.ResponseWriter, email string) error {
	token, err := h.tokens.Generate(email)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// clearCookie tells the browser to delete the named cookie now.
func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
