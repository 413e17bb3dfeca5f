package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/pairing-service/internal/apperror"
	"github.com/sakif/pairing-service/internal/auth"
	"github.com/sakif/pairing-service/internal/model"
	"github.com/sakif/pairing-service/internal/service"
)

const (
	stateCookie = "oauth_state"
	// LoginExchangeHeader carries the shared key for POST /auth/login-exchange.
	LoginExchangeHeader = "X-Login-Exchange-Key"
)

// TokenResponse is returned by every successful login.
type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        *model.User `json:"user"`
}

// AuthHandler serves login and profile routes.
//
//   - HandleGoogleLogin     GET  /auth/login/google
//   - HandleGoogleCallback  GET  /auth/callback/google
//   - HandleLoginExchange   POST /auth/login-exchange
//   - HandleProfile         GET  /auth/profile
type AuthHandler struct {
	provider      auth.IdentityProvider
	auth          *service.AuthService
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(
	provider auth.IdentityProvider,
	authSvc *service.AuthService,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:      provider,
		auth:          authSvc,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// HandleGoogleLogin stores a single-use state in a cookie and redirects the
// browser to Google.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !auth.Configured(h.provider) {
		WriteError(w, apperror.ErrUpstreamUnavailable)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback checks the state, exchanges the code for a verified
// identity and returns an access token for the matching user.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !auth.Configured(h.provider) {
		WriteError(w, apperror.ErrUpstreamUnavailable)
		return
	}

	query := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || query.Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		WriteError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Info("auth callback: provider returned error", slog.String("error", errParam))
		WriteError(w, apperror.Upstream(errParam))
		return
	}

	identity, err := h.provider.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		h.logger.Warn("auth callback: exchange failed", slog.String("error", err.Error()))
		WriteError(w, err)
		return
	}

	h.login(w, r, *identity)
}

// HandleLoginExchange lets a trusted collaborator that has already verified
// an identity trade it for an access token. Mount it behind
// RequireExchangeKey.
func (h *AuthHandler) HandleLoginExchange(w http.ResponseWriter, r *http.Request) {
	var identity model.Identity
	if err := decodeJSON(w, r, &identity); err != nil {
		WriteError(w, err)
		return
	}

	h.login(w, r, identity)
}

// HandleProfile returns the authenticated user.
func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, identity model.Identity) {
	result, err := h.auth.Login(r.Context(), identity)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		User:        result.User,
	})
}

// RequireExchangeKey rejects requests whose LoginExchangeHeader does not
// match key.
func RequireExchangeKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(LoginExchangeHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				WriteError(w, apperror.Forbidden("invalid login exchange key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// currentUser reads the user stored by auth.RequireAuth. It writes a 401
// and returns false when the route was mounted without the gate.
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		WriteError(w, apperror.ErrAuthInvalid)
		return nil, false
	}
	return user, true
}
