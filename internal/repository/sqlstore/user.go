package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/pairing-service/internal/apperror"
	"github.com/sakif/pairing-service/internal/model"
)

// Create inserts a new user. ID, CreatedAt and UpdatedAt are filled in on
// the caller's struct; PairingCode and PartnerID are always stored as NULL.
func (s *Store) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.PairingCode = nil
	user.PartnerID = nil

	err := s.db.QueryRowxContext(ctx, s.rebind(
		`INSERT INTO users (email, full_name, picture, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id`),
		user.Email,
		user.FullName,
		user.Picture,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if uniqueViolationOn(err, "email") {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlstore: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by primary key.
func (s *Store) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("sqlstore: getting user %d: %w", id, err)
	}
	return &u, nil
}

// GetByEmail retrieves a user by exact email match.
func (s *Store) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("sqlstore: getting user by email: %w", err)
	}
	return &u, nil
}
