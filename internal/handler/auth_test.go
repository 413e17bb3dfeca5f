package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pairing-service/internal/apperror"
	"github.com/sakif/pairing-service/internal/auth"
	"github.com/sakif/pairing-service/internal/handler"
	"github.com/sakif/pairing-service/internal/logger"
	"github.com/sakif/pairing-service/internal/model"
)

// fakeProvider is an auth.IdentityProvider that returns a fixed identity.
type fakeProvider struct {
	identity *model.Identity
	err      error
	gotCode  string
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*model.Identity, error) {
	f.gotCode = code
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func newAuthHandler(t *testing.T, provider auth.IdentityProvider) (*handler.AuthHandler, *deps) {
	t.Helper()
	d := newDeps(t)
	return handler.NewAuthHandler(provider, d.auth, false, logger.Discard()), d
}

func callbackRequest(query, cookieState string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback/google?"+query, nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: cookieState})
	}
	return req
}

// =========================================================================
// GOOGLE LOGIN
// =========================================================================

func TestHandleGoogleLogin(t *testing.T) {
	h, _ := newAuthHandler(t, &fakeProvider{})
	rr := httptest.NewRecorder()

	h.HandleGoogleLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/login/google", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "oauth_state", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotEmpty(t, cookies[0].Value)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, cookies[0].Value, loc.Query().Get("state"))
}

func TestHandleGoogle_Unconfigured(t *testing.T) {
	h, _ := newAuthHandler(t, auth.NewUnconfiguredProvider())

	for _, call := range []struct {
		name string
		fn   http.HandlerFunc
	}{
		{"login", h.HandleGoogleLogin},
		{"callback", h.HandleGoogleCallback},
	} {
		t.Run(call.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			call.fn(rr, callbackRequest("code=x&state=s", "s"))

			assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
			assert.Equal(t, "upstream_unavailable", decodeError(t, rr).Error)
		})
	}
}

// =========================================================================
// GOOGLE CALLBACK
// =========================================================================

func TestHandleGoogleCallback(t *testing.T) {
	provider := &fakeProvider{identity: &model.Identity{Email: "U1@Example.com", DisplayName: "User One"}}
	h, d := newAuthHandler(t, provider)
	rr := httptest.NewRecorder()

	h.HandleGoogleCallback(rr, callbackRequest("code=auth-code&state=abc", "abc"))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "auth-code", provider.gotCode)

	var res handler.TokenResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "bearer", res.TokenType)
	require.NotNil(t, res.User)
	assert.Equal(t, "u1@example.com", res.User.Email)

	id, err := d.tokens.Verify(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id)

	// The state cookie is cleared.
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestHandleGoogleCallback_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		cookie      string
		providerErr error
		wantStatus  int
		wantCode    string
	}{
		{"no state cookie", "code=c&state=abc", "", nil, http.StatusBadRequest, "validation_error"},
		{"state mismatch", "code=c&state=abc", "xyz", nil, http.StatusBadRequest, "validation_error"},
		{"provider error param", "error=access_denied&state=abc", "abc", nil, http.StatusBadRequest, "upstream_identity_error"},
		{"exchange fails", "code=c&state=abc", "abc", apperror.Upstream("invalid_grant"), http.StatusBadRequest, "upstream_identity_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{
				identity: &model.Identity{Email: "a@example.com"},
				err:      tt.providerErr,
			}
			h, d := newAuthHandler(t, provider)
			rr := httptest.NewRecorder()

			h.HandleGoogleCallback(rr, callbackRequest(tt.query, tt.cookie))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rr).Error)

			_, err := d.store.GetByEmail(context.Background(), "a@example.com")
			assert.ErrorIs(t, err, apperror.ErrUserNotFound, "no user is created on a rejected callback")
		})
	}
}

// =========================================================================
// LOGIN EXCHANGE
// =========================================================================

func TestHandleLoginExchange(t *testing.T) {
	h, d := newAuthHandler(t, &fakeProvider{})
	rr := httptest.NewRecorder()

	req := jsonRequest(t, http.MethodPost, "/auth/login-exchange", map[string]string{
		"email":        "u1@example.com",
		"display_name": "User One",
		"picture_url":  "https://example.com/u1.png",
	})
	h.HandleLoginExchange(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res handler.TokenResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, "bearer", res.TokenType)
	require.NotNil(t, res.User.FullName)
	assert.Equal(t, "User One", *res.User.FullName)

	user, err := d.auth.Authenticate(context.Background(), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", user.Email)
}

func TestHandleLoginExchange_BadBody(t *testing.T) {
	h, _ := newAuthHandler(t, &fakeProvider{})

	for name, body := range map[string]string{
		"malformed":     `{"email":`,
		"missing email": `{}`,
		"empty":         ``,
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/auth/login-exchange", stringsReader(body))

			h.HandleLoginExchange(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "validation_error", decodeError(t, rr).Error)
		})
	}
}

func TestRequireExchangeKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		key        string
		header     string
		wantStatus int
	}{
		{"matching key", "s3cret", "s3cret", http.StatusNoContent},
		{"wrong key", "s3cret", "guess", http.StatusForbidden},
		{"missing header", "s3cret", "", http.StatusForbidden},
		{"gate without key", "", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/login-exchange", nil)
			if tt.header != "" {
				req.Header.Set(handler.LoginExchangeHeader, tt.header)
			}
			rr := httptest.NewRecorder()

			handler.RequireExchangeKey(tt.key)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

// =========================================================================
// PROFILE
// =========================================================================

func TestHandleProfile(t *testing.T) {
	h, d := newAuthHandler(t, &fakeProvider{})
	user := d.user(t, "a@example.com")
	rr := httptest.NewRecorder()

	h.HandleProfile(rr, asUser(httptest.NewRequest(http.MethodGet, "/auth/profile", nil), user))

	require.Equal(t, http.StatusOK, rr.Code)
	var got model.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "a@example.com", got.Email)
}

func TestHandleProfile_NoUser(t *testing.T) {
	h, _ := newAuthHandler(t, &fakeProvider{})
	rr := httptest.NewRecorder()

	h.HandleProfile(rr, httptest.NewRequest(http.MethodGet, "/auth/profile", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
