package auth

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
)

// fakeGoogle serves a token endpoint and a userinfo endpoint.
type fakeGoogle struct {
	tokenStatus    int
	userInfoStatus int
	userInfo       map[string]any
}

func (f *fakeGoogle) start(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "upstream-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer upstream-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.userInfoStatus != http.StatusOK {
			w.WriteHeader(f.userInfoStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(f.userInfo)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogleProvider(t *testing.T, f *fakeGoogle) *GoogleProvider {
	t.Helper()
	srv := f.start(t)
	return NewGoogleProvider("client-id", "client-secret", "http://localhost/cb").
		WithEndpoints(srv.URL+"/auth", srv.URL+"/token", srv.URL+"/userinfo")
}

func TestGoogleAuthURL(t *testing.T) {
	p := NewGoogleProvider("client-id", "client-secret", "http://localhost/cb")

	raw := p.AuthURL("state-123")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Contains(t, q.Get("scope"), "email")
}

func TestGoogleExchange(t *testing.T) {
	p := newTestGoogleProvider(t, &fakeGoogle{
		tokenStatus:    http.StatusOK,
		userInfoStatus: http.StatusOK,
		userInfo: map[string]any{
			"sub":            "1234",
			"email":          "Alice@Example.com",
			"email_verified": true,
			"name":           "Alice",
			"picture":        "https://example.com/a.png",
		},
	})

	id, err := p.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "Alice@Example.com", id.Email, "normalization is the resolver's job")
	assert.Equal(t, "Alice", id.DisplayName)
	assert.Equal(t, "https://example.com/a.png", id.PictureURL)
}

func TestGoogleExchange_Failures(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		fake        fakeGoogle
		wantMessage string
	}{
		{
			name:        "missing code",
			code:        "",
			fake:        fakeGoogle{tokenStatus: http.StatusOK, userInfoStatus: http.StatusOK},
			wantMessage: "missing authorization code",
		},
		{
			name:        "token endpoint rejects code",
			code:        "bad",
			fake:        fakeGoogle{tokenStatus: http.StatusBadRequest},
			wantMessage: "invalid_grant",
		},
		{
			name:        "userinfo fails",
			code:        "ok",
			fake:        fakeGoogle{tokenStatus: http.StatusOK, userInfoStatus: http.StatusInternalServerError},
			wantMessage: "userinfo returned status 500",
		},
		{
			name: "no email",
			code: "ok",
			fake: fakeGoogle{tokenStatus: http.StatusOK, userInfoStatus: http.StatusOK,
				userInfo: map[string]any{"sub": "1", "email_verified": true}},
			wantMessage: "no email returned",
		},
		{
			name: "unverified email",
			code: "ok",
			fake: fakeGoogle{tokenStatus: http.StatusOK, userInfoStatus: http.StatusOK,
				userInfo: map[string]any{"sub": "1", "email": "a@example.com", "email_verified": false}},
			wantMessage: "email not verified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestGoogleProvider(t, &tt.fake)

			_, err := p.Exchange(context.Background(), tt.code)

			require.ErrorIs(t, err, apperror.ErrUpstreamIdentity)
			assert.ErrorIs(t, err, apperror.ErrUpstream)
			assert.Contains(t, err.Error(), tt.wantMessage)
		})
	}
}

func TestUnconfiguredProvider(t *testing.T) {
	p := NewUnconfiguredProvider()

	_, err := p.Exchange(context.Background(), "code")

	assert.ErrorIs(t, err, apperror.ErrUpstreamUnavailable)
	assert.False(t, Configured(p))
	assert.True(t, Configured(NewGoogleProvider("id", "secret", "http://localhost/cb")))
}
