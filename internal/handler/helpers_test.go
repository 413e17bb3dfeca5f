package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/pairing-service/internal/auth"
	"github.com/sakif/pairing-service/internal/db"
	"github.com/sakif/pairing-service/internal/handler"
	"github.com/sakif/pairing-service/internal/logger"
	"github.com/sakif/pairing-service/internal/model"
	"github.com/sakif/pairing-service/internal/repository/sqlstore"
	"github.com/sakif/pairing-service/internal/service"
)

// deps bundles real services over an in-memory store.
type deps struct {
	store    *sqlstore.Store
	tokens   *auth.TokenService
	auth     *service.AuthService
	pairings *service.PairingService
}

func newDeps(t *testing.T) *deps {
	t.Helper()

	conn, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn, logger.Discard()))
	store := sqlstore.New(conn)
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", "HS256", time.Hour)
	require.NoError(t, err)

	return &deps{
		store:    store,
		tokens:   tokens,
		auth:     service.NewAuthService(store, tokens, logger.Discard()),
		pairings: service.NewPairingService(store, store, nil, logger.Discard()),
	}
}

func (d *deps) user(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := d.auth.ResolveOrCreate(context.Background(), model.Identity{Email: email})
	require.NoError(t, err)
	return u
}

func (d *deps) reload(t *testing.T, u *model.User) *model.User {
	t.Helper()
	got, err := d.store.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	return got
}

// asUser attaches user to the request the way auth.RequireAuth does.
func asUser(r *http.Request, user *model.User) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), user))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var res handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	return res
}

func stringsReader(s string) *bytes.Reader {
	return bytes.NewReader([]byte(s))
}
