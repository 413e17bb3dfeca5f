// Package auth turns external logins into bearer tokens and bearer tokens
// back into users.
//
// Flow:
//  1. The client is sent to Google (GoogleProvider.AuthURL).
//  2. Google calls back with a code; Exchange returns a verified Identity.
//  3. The service layer resolves the Identity to a User and calls Issue.
//  4. Guarded routes run RequireAuth, which verifies the token and loads the User.
//
// Tokens are HMAC-signed JWTs:
//
//	{"sub":"42","iss":"pairing-service","iat":1700000000,"exp":1700003600}
//
// sub is the user's integer id in canonical base-10 form. Verify rejects any
// other spelling ("042", "+42", "4.2e1") rather than guessing.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/pairing-service/internal/apperror"
)

const issuer = "pairing-service"

var signingMethods = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// TokenService issues and verifies access tokens. The key, algorithm and
// lifetime are fixed at construction.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. algorithm is one of HS256, HS384
// or HS512.
func NewTokenService(secret, algorithm string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 characters")
	}
	method, ok := signingMethods[algorithm]
	if !ok {
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", algorithm)
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token lifetime must be positive")
	}

	return &TokenService{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL returns the lifetime of tokens produced by Issue.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for userID that expires after the configured TTL.
func (s *TokenService) Issue(userID int64) (string, error) {
	return s.IssueWithDuration(userID, s.ttl)
}

// IssueWithDuration signs a token with a custom lifetime. A negative d
// yields an already-expired token, which tests use.
func (s *TokenService) IssueWithDuration(userID int64, d time.Duration) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("auth: invalid user id %d", userID)
	}

	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
	}

	signed, err := jwt.NewWithClaims(s.method, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, issuer and expiry of tokenStr and returns
// the user id it carries.
//
// Errors are apperror.ErrAuthExpired for an expired but otherwise valid
// token and apperror.ErrAuthInvalid for everything else.
func (s *TokenService) Verify(tokenStr string) (int64, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, apperror.ErrAuthExpired
		}
		return 0, apperror.ErrAuthInvalid
	}
	if !token.Valid {
		return 0, apperror.ErrAuthInvalid
	}

	return parseSubject(c.Subject)
}

// parseSubject accepts only the exact output of strconv.FormatInt for a
// positive id.
func parseSubject(sub string) (int64, error) {
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 || strconv.FormatInt(id, 10) != sub {
		return 0, apperror.ErrAuthInvalid
	}
	return id, nil
}
