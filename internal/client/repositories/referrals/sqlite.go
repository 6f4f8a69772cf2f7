package referrals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/dbx"
)

const selectColumns = `user_id, token, count, quota, level, whatsapp_request_sent, active, updated_at`

// SQLiteRepository implements Repository. Redeem needs a transaction, so it
// holds the *sql.DB rather than a DBTX.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, rec *models.ReferralRecord) error {
	query := `INSERT INTO referrals (` + selectColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, rec.UserID, rec.Token, rec.Count, rec.Quota, rec.Level,
		rec.WhatsappRequestSent, rec.Active, rec.UpdatedAt.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("failed to insert referral: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByUserID(ctx context.Context, userID string) (*models.ReferralRecord, error) {
	return getOne(ctx, r.db, `SELECT `+selectColumns+` FROM referrals WHERE user_id = ?`, userID)
}

func (r *SQLiteRepository) GetByToken(ctx context.Context, token string) (*models.ReferralRecord, error) {
	return getOne(ctx, r.db, `SELECT `+selectColumns+` FROM referrals WHERE token = ?`, token)
}

func (r *SQLiteRepository) Increment(ctx context.Context, token string, now time.Time) error {
	return increment(ctx, r.db, token, now)
}

func (r *SQLiteRepository) Redeem(ctx context.Context, token, redemptionID string, now time.Time) (bool, error) {
	applied := false
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO referral_redemptions (token, redemption_id, redeemed_at)
			VALUES (?, ?, ?)`, token, redemptionID, now.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to record redemption: %w", err)
		}
		if err := dbx.AffectedOne(res); err != nil {
			if errors.Is(err, dbx.ErrNoRowsAffected) {
				return nil
			}
			return err
		}
		if err := increment(ctx, tx, token, now); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *SQLiteRepository) MarkRequestSent(ctx context.Context, userID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE referrals SET whatsapp_request_sent = 1, updated_at = ?
		WHERE user_id = ? AND whatsapp_request_sent = 0 AND count >= quota`, now.UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("failed to mark request sent: %w", err)
	}
	return conflictIfNone(res)
}

func (r *SQLiteRepository) Deactivate(ctx context.Context, userID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE referrals SET active = 0, updated_at = ?
		WHERE user_id = ? AND active = 1`, now.UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate referral: %w", err)
	}
	return conflictIfNone(res)
}

func (r *SQLiteRepository) AdvanceLevel(ctx context.Context, userID string, now time.Time) (*models.ReferralRecord, error) {
	query := `UPDATE referrals SET level = level + 1, count = 0, quota = (level + 1) * ?,
			whatsapp_request_sent = 0, updated_at = ?
		WHERE user_id = ?
		RETURNING ` + selectColumns

	rec, err := scan(r.db.QueryRowContext(ctx, query, models.QuotaPerLevel, now.UnixMilli(), userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to advance level: %w", err)
	}
	return rec, nil
}

func increment(ctx context.Context, db dbx.DBTX, token string, now time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE referrals SET count = count + 1, updated_at = ?
		WHERE token = ? AND active = 1 AND count < quota`, now.UnixMilli(), token)
	if err != nil {
		return fmt.Errorf("failed to increment referral: %w", err)
	}
	return conflictIfNone(res)
}

func conflictIfNone(res sql.Result) error {
	if err := dbx.AffectedOne(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrorConflict
		}
		return err
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.ReferralRecord, error) {
	var (
		rec       models.ReferralRecord
		updatedAt int64
	)
	if err := s.Scan(&rec.UserID, &rec.Token, &rec.Count, &rec.Quota, &rec.Level,
		&rec.WhatsappRequestSent, &rec.Active, &updatedAt); err != nil {
		return nil, err
	}
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &rec, nil
}

func getOne(ctx context.Context, db dbx.DBTX, query string, arg string) (*models.ReferralRecord, error) {
	rec, err := scan(db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return rec, nil
}
