// Package service holds the business rules. Handlers call services;
// services call repositories and the token service. Nothing in this
// package knows about HTTP or SQL.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/pairing-service/internal/apperror"
	"github.com/sakif/pairing-service/internal/auth"
	"github.com/sakif/pairing-service/internal/model"
	"github.com/sakif/pairing-service/internal/repository"
)

// AuthService maps verified external identities to users and bearer tokens
// back to users.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles the user and a freshly issued access token.
type AuthResult struct {
	User  *model.User
	Token string
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveOrCreate returns the user for a verified identity, creating one on
// first sight. An existing user is returned as stored: repeat logins never
// overwrite full_name or picture.
func (s *AuthService) ResolveOrCreate(ctx context.Context, id model.Identity) (*model.User, error) {
	email := NormalizeEmail(id.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "email is malformed")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrUserNotFound) {
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	user = &model.User{
		Email:    email,
		FullName: optional(id.DisplayName),
		Picture:  optional(id.PictureURL),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/auth: creating user %s: %w", email, err)
		}

		// A concurrent first login won the insert; use its row.
		user, err = s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("service/auth: re-reading user %s: %w", email, err)
		}
		return user, nil
	}

	s.logger.Info("user created",
		slog.Int64("userID", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Login resolves the identity and issues an access token for it.
func (s *AuthService) Login(ctx context.Context, id model.Identity) (*AuthResult, error) {
	user, err := s.ResolveOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate verifies a bearer token and loads its user. It implements
// auth.Authenticator.
//
// Token failures are apperror.ErrAuthInvalid or apperror.ErrAuthExpired;
// a valid token for a deleted user is apperror.ErrUserNotFound.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("token rejected", slog.String("error", err.Error()))
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: loading user %d: %w", userID, err)
	}
	return user, nil
}

// optional maps "" to nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
