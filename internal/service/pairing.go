package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/pairing-service/internal/apperror"
	"github.com/sakif/pairing-service/internal/model"
	"github.com/sakif/pairing-service/internal/repository"
)

// PairingService links two users through a one-time pairing code.
//
// Per user the state is one of: unpaired without a code, unpaired holding a
// code, or paired. The checks on the *model.User passed in are a fast path
// only; the repository re-checks every precondition inside its transaction.
type PairingService struct {
	users    repository.UserRepository
	pairings repository.PairingRepository
	generate CodeGenerator
	logger   *slog.Logger
}

// NewPairingService creates a PairingService. A nil generate uses the
// default alphabet and length.
func NewPairingService(
	users repository.UserRepository,
	pairings repository.PairingRepository,
	generate CodeGenerator,
	logger *slog.Logger,
) *PairingService {
	if generate == nil {
		generate = NewCodeGenerator(DefaultCodeAlphabet, DefaultCodeLength)
	}
	return &PairingService{
		users:    users,
		pairings: pairings,
		generate: generate,
		logger:   logger,
	}
}

// GenerateCode assigns a fresh code to user, replacing any code it held.
//
// Collisions with codes held by other users are retried up to
// MaxCodeAttempts times, then apperror.ErrCodeSpaceExhausted.
func (s *PairingService) GenerateCode(ctx context.Context, user *model.User) (string, error) {
	if user.IsPaired() {
		return "", apperror.ErrAlreadyPaired
	}

	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return "", err
		}

		err = s.pairings.AssignPairingCode(ctx, user.ID, code)
		if err == nil {
			s.logger.Info("pairing code issued",
				slog.Int64("userID", user.ID),
				slog.Int("attempt", attempt),
			)
			return code, nil
		}
		if !errors.Is(err, repository.ErrCodeInUse) {
			return "", wrapStoreError("assigning pairing code", err)
		}

		s.logger.Debug("pairing code collision",
			slog.Int64("userID", user.ID),
			slog.Int("attempt", attempt),
		)
	}

	s.logger.Error("pairing code space exhausted",
		slog.Int64("userID", user.ID),
		slog.Int("attempts", MaxCodeAttempts),
	)
	return "", apperror.ErrCodeSpaceExhausted
}

// Pair links user with the holder of rawCode. rawCode is trimmed and
// upper-cased first. Returns the partner's updated record.
func (s *PairingService) Pair(ctx context.Context, user *model.User, rawCode string) (*model.User, error) {
	code := NormalizeCode(rawCode)
	if code == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	if user.IsPaired() {
		return nil, apperror.ErrAlreadyPaired
	}

	partner, err := s.pairings.Pair(ctx, user.ID, code)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			s.logger.Info("pair rejected",
				slog.Int64("userID", user.ID),
				slog.String("reason", appErr.Code),
			)
		}
		return nil, wrapStoreError("pairing", err)
	}

	s.logger.Info("users paired",
		slog.Int64("userID", user.ID),
		slog.Int64("partnerID", partner.ID),
	)
	return partner, nil
}

// Unpair dissolves user's pairing on both sides.
func (s *PairingService) Unpair(ctx context.Context, user *model.User) error {
	if !user.IsPaired() {
		return apperror.ErrNotPaired
	}

	partnerID, err := s.pairings.Unpair(ctx, user.ID)
	if err != nil {
		return wrapStoreError("unpairing", err)
	}

	s.logger.Info("users unpaired",
		slog.Int64("userID", user.ID),
		slog.Int64("partnerID", partnerID),
	)
	return nil
}

// Partner returns user's current partner.
func (s *PairingService) Partner(ctx context.Context, user *model.User) (*model.User, error) {
	if !user.IsPaired() {
		return nil, apperror.ErrNotPaired
	}

	partner, err := s.users.GetByID(ctx, *user.PartnerID)
	if err != nil {
		return nil, wrapStoreError("loading partner", err)
	}
	return partner, nil
}

// wrapStoreError passes domain errors through untouched and adds context
// to everything else, which the handler reports as an internal error.
func wrapStoreError(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("service/pairing: %s: %w", op, err)
}
