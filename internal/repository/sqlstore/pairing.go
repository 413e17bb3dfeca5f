package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/pairing-service/internal/apperror"
	"github.com/sakif/pairing-service/internal/model"
	"github.com/sakif/pairing-service/internal/repository"
)

// AssignPairingCode stores code on userID, replacing any code the user
// already held.
func (s *Store) AssignPairingCode(ctx context.Context, userID int64, code string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var holder int64
		err := tx.GetContext(ctx, &holder, s.rebind(
			`SELECT id FROM users WHERE pairing_code = ? AND id <> ?`), code, userID)
		switch {
		case err == nil:
			return repository.ErrCodeInUse
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("sqlstore: checking code holder: %w", err)
		}

		res, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE users SET pairing_code = ?, updated_at = ?
			 WHERE id = ? AND partner_id IS NULL`),
			code, time.Now().UTC(), userID)
		if err != nil {
			// Another transaction took the code between our check and the write.
			if uniqueViolationOn(err, "pairing_code") {
				return repository.ErrCodeInUse
			}
			return fmt.Errorf("sqlstore: assigning pairing code to user %d: %w", userID, err)
		}

		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return s.missingOrPaired(ctx, tx, userID)
		}
		return nil
	})
}

// Pair links userID with the holder of code. Both rows are updated in the
// same transaction, lowest id first; each UPDATE re-checks that its row is
// still unpaired, so a concurrent claim on either side rolls this one back.
func (s *Store) Pair(ctx context.Context, userID int64, code string) (*model.User, error) {
	var partner model.User

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var target model.User
		err := tx.GetContext(ctx, &target, s.rebind(
			`SELECT `+userColumns+` FROM users WHERE pairing_code = ?`), code)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrCodeNotFound
			}
			return fmt.Errorf("sqlstore: looking up pairing code: %w", err)
		}

		if target.ID == userID {
			return apperror.ErrSelfPair
		}
		if target.PartnerID != nil {
			return apperror.ErrTargetAlreadyPaired
		}

		now := time.Now().UTC()

		claimCaller := func() error {
			res, err := tx.ExecContext(ctx, s.rebind(
				`UPDATE users SET partner_id = ?, pairing_code = NULL, updated_at = ?
				 WHERE id = ? AND partner_id IS NULL`),
				target.ID, now, userID)
			if err != nil {
				return fmt.Errorf("sqlstore: linking user %d: %w", userID, err)
			}
			n, err := rowsAffected(res)
			if err != nil {
				return err
			}
			if n == 0 {
				return s.missingOrPaired(ctx, tx, userID)
			}
			return nil
		}

		claimTarget := func() error {
			res, err := tx.ExecContext(ctx, s.rebind(
				`UPDATE users SET partner_id = ?, pairing_code = NULL, updated_at = ?
				 WHERE id = ? AND pairing_code = ? AND partner_id IS NULL`),
				userID, now, target.ID, code)
			if err != nil {
				return fmt.Errorf("sqlstore: linking user %d: %w", target.ID, err)
			}
			n, err := rowsAffected(res)
			if err != nil {
				return err
			}
			if n == 0 {
				// The code was claimed or replaced after we read it.
				return apperror.ErrCodeNotFound
			}
			return nil
		}

		first, second := claimCaller, claimTarget
		if target.ID < userID {
			first, second = claimTarget, claimCaller
		}
		if err := first(); err != nil {
			return err
		}
		if err := second(); err != nil {
			return err
		}

		err = tx.GetContext(ctx, &partner, s.rebind(
			`SELECT `+userColumns+` FROM users WHERE id = ?`), target.ID)
		if err != nil {
			return fmt.Errorf("sqlstore: reloading partner %d: %w", target.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &partner, nil
}

// Unpair clears the link on both sides. A partner row that no longer
// points back (or no longer exists) is left alone.
func (s *Store) Unpair(ctx context.Context, userID int64) (int64, error) {
	var partnerID int64

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current sql.NullInt64
		err := tx.GetContext(ctx, &current, s.rebind(
			`SELECT partner_id FROM users WHERE id = ?`), userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrUserNotFound
			}
			return fmt.Errorf("sqlstore: reading partner of user %d: %w", userID, err)
		}
		if !current.Valid {
			return apperror.ErrNotPaired
		}
		partnerID = current.Int64

		now := time.Now().UTC()

		clearCaller := func() error {
			res, err := tx.ExecContext(ctx, s.rebind(
				`UPDATE users SET partner_id = NULL, updated_at = ?
				 WHERE id = ? AND partner_id = ?`),
				now, userID, partnerID)
			if err != nil {
				return fmt.Errorf("sqlstore: unlinking user %d: %w", userID, err)
			}
			n, err := rowsAffected(res)
			if err != nil {
				return err
			}
			if n == 0 {
				return apperror.ErrNotPaired
			}
			return nil
		}

		clearPartner := func() error {
			_, err := tx.ExecContext(ctx, s.rebind(
				`UPDATE users SET partner_id = NULL, updated_at = ?
				 WHERE id = ? AND partner_id = ?`),
				now, partnerID, userID)
			if err != nil {
				return fmt.Errorf("sqlstore: unlinking user %d: %w", partnerID, err)
			}
			return nil
		}

		first, second := clearCaller, clearPartner
		if partnerID < userID {
			first, second = clearPartner, clearCaller
		}
		if err := first(); err != nil {
			return err
		}
		return second()
	})
	if err != nil {
		return 0, err
	}

	return partnerID, nil
}

// missingOrPaired explains why a guarded UPDATE on userID touched no rows.
func (s *Store) missingOrPaired(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	var count int
	err := tx.GetContext(ctx, &count, s.rebind(`SELECT COUNT(*) FROM users WHERE id = ?`), userID)
	if err != nil {
		return fmt.Errorf("sqlstore: checking user %d: %w", userID, err)
	}
	if count == 0 {
		return apperror.ErrUserNotFound
	}
	return apperror.ErrAlreadyPaired
}
