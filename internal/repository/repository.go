// Package repository declares the storage contracts used by the service layer.
package repository

import (
	"context"
	"errors"

	"github.com/sakif/pairing-service/internal/model"
)

// ErrCodeInUse is returned when a pairing code is already held by another
// user. It is a retry signal for code generation, not a caller-facing error.
var ErrCodeInUse = errors.New("pairing code already in use")

// UserRepository is the Identity Store.
type UserRepository interface {
	// Create inserts a user and fills in ID and timestamps.
	// A duplicate email yields apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	// GetByID returns apperror.ErrUserNotFound when no row matches.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByEmail matches the stored (normalized) email exactly.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// PairingRepository performs the pairing mutations. Each method is one
// transaction: it either commits every row it touches or none.
type PairingRepository interface {
	// AssignPairingCode sets userID's pairing code if the user is unpaired.
	// Returns ErrCodeInUse if another user holds code,
	// apperror.ErrAlreadyPaired if the user has a partner.
	AssignPairingCode(ctx context.Context, userID int64, code string) error

	// Pair links userID with the holder of code and clears both codes.
	// Returns the updated partner record.
	Pair(ctx context.Context, userID int64, code string) (*model.User, error)

	// Unpair clears userID's partner link and the partner's back-link.
	// Returns the former partner's ID.
	Unpair(ctx context.Context, userID int64) (int64, error)
}

// Pinger reports store liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}
