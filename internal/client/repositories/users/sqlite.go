package users

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

const selectColumns = `local_id, identity_id, pseudo, name, password_hash, salt, created_at,
	grade_level, is_offline, trial_expires_at, sync_status, role, last_sync_at, revision`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, u *models.UserRecord) error {
	query := `INSERT INTO users (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`

	_, err := r.db.ExecContext(ctx, query, r.args(u)...)
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	u.Revision = 1
	return nil
}

func (r *SQLiteRepository) GetByLocalID(ctx context.Context, localID string) (*models.UserRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE local_id = ?`, localID)
	return r.scanOne(row)
}

func (r *SQLiteRepository) GetByPseudo(ctx context.Context, pseudo string) (*models.UserRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM users WHERE pseudo = ?`, pseudo)
	return r.scanOne(row)
}

func (r *SQLiteRepository) Upsert(ctx context.Context, u *models.UserRecord) error {
	query := `INSERT INTO users (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(local_id) DO UPDATE SET
			identity_id = excluded.identity_id,
			pseudo = excluded.pseudo,
			name = excluded.name,
			password_hash = excluded.password_hash,
			salt = excluded.salt,
			grade_level = excluded.grade_level,
			is_offline = excluded.is_offline,
			trial_expires_at = excluded.trial_expires_at,
			sync_status = excluded.sync_status,
			role = excluded.role,
			last_sync_at = excluded.last_sync_at,
			revision = users.revision + 1
		WHERE users.revision = ?
		RETURNING revision`

	args := append(r.args(u), u.Revision)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&u.Revision); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorConflict
		}
		if isUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateGradeLevel(ctx context.Context, localID, gradeLevel string) error {
	query := `UPDATE users SET grade_level = ?,
			sync_status = CASE WHEN sync_status = ? THEN ? ELSE sync_status END,
			revision = revision + 1
		WHERE local_id = ?`

	res, err := r.db.ExecContext(ctx, query, gradeLevel,
		models.SyncStatusSynced, models.SyncStatusPendingUpdate, localID)
	if err != nil {
		return fmt.Errorf("failed to update grade level: %w", err)
	}
	if err := dbx.AffectedOne(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrorNotFound
		}
		return err
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, localID, remoteKey string, revision int64, now time.Time) error {
	query := `UPDATE users SET identity_id = ?, role = ?, sync_status = ?, last_sync_at = ?,
			trial_expires_at = NULL, is_offline = 0, revision = revision + 1
		WHERE local_id = ? AND revision = ?`

	res, err := r.db.ExecContext(ctx, query, remoteKey, models.RoleActive, models.SyncStatusSynced,
		now.UnixMilli(), localID, revision)
	if err != nil {
		return fmt.Errorf("failed to mark user synced: %w", err)
	}
	if err := dbx.AffectedOne(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrorConflict
		}
		return err
	}
	return nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*models.UserRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE sync_status <> ? ORDER BY created_at`
	return r.scanAll(ctx, query, models.SyncStatusSynced)
}

func (r *SQLiteRepository) ListStale(ctx context.Context, cutoff time.Time, statuses ...models.SyncStatus) ([]*models.UserRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	query := `SELECT ` + selectColumns + ` FROM users
		WHERE created_at < ? AND sync_status IN (` + placeholders + `) ORDER BY created_at`

	args := make([]any, 0, len(statuses)+1)
	args = append(args, cutoff.UnixMilli())
	for _, s := range statuses {
		args = append(args, s)
	}
	return r.scanAll(ctx, query, args...)
}

func (r *SQLiteRepository) DeleteByLocalID(ctx context.Context, localID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) args(u *models.UserRecord) []any {
	return []any{
		u.LocalID, u.IdentityID, u.Pseudo, u.Name, u.PasswordHash, u.Salt, u.CreatedAt.UnixMilli(),
		u.GradeLevel, u.IsOffline, nullableMillis(u.TrialExpiresAt), u.SyncStatus, u.Role,
		nullableMillis(u.LastSyncAt),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scan(s scanner) (*models.UserRecord, error) {
	var (
		u                  models.UserRecord
		createdAt          int64
		trialExpires, sync sql.NullInt64
	)
	err := s.Scan(&u.LocalID, &u.IdentityID, &u.Pseudo, &u.Name, &u.PasswordHash, &u.Salt, &createdAt,
		&u.GradeLevel, &u.IsOffline, &trialExpires, &u.SyncStatus, &u.Role, &sync, &u.Revision)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	u.TrialExpiresAt = fromMillis(trialExpires)
	u.LastSyncAt = fromMillis(sync)
	return &u, nil
}

func (r *SQLiteRepository) scanOne(row *sql.Row) (*models.UserRecord, error) {
	u, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) scanAll(ctx context.Context, query string, args ...any) ([]*models.UserRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	var result []*models.UserRecord
	for rows.Next() {
		u, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed")
}
