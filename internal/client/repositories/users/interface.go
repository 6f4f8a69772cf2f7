// Package users is the Local Identity Store: durable user rows with their
// sync status, backed by the client's SQLite database.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
)

// Repository describes the row-store operations consumed by the auth flow,
// the sync worker and cleanup. Lookups of absent rows return common.ErrorNotFound.
type Repository interface {
	// Create inserts a new record; common.ErrorAlreadyExists if the local id
	// or the pseudo is taken.
	Create(ctx context.Context, u *models.UserRecord) error

	GetByLocalID(ctx context.Context, localID string) (*models.UserRecord, error)
	GetByPseudo(ctx context.Context, pseudo string) (*models.UserRecord, error)

	// Upsert inserts u, or replaces the stored row addressed by LocalID while
	// its revision still equals u.Revision (common.ErrorConflict otherwise).
	// u.Revision is updated to the stored value.
	Upsert(ctx context.Context, u *models.UserRecord) error

	// UpdateGradeLevel changes the grade; a synced row becomes PENDING_UPDATE.
	UpdateGradeLevel(ctx context.Context, localID, gradeLevel string) error

	// MarkSynced records a successful promotion. It only applies while the
	// row's revision still equals revision, otherwise common.ErrorConflict.
	MarkSynced(ctx context.Context, localID, remoteKey string, revision int64, now time.Time) error

	// ListPending returns all rows whose sync status is not SYNCED.
	ListPending(ctx context.Context) ([]*models.UserRecord, error)

	// ListStale returns rows created before cutoff having one of statuses.
	ListStale(ctx context.Context, cutoff time.Time, statuses ...models.SyncStatus) ([]*models.UserRecord, error)

	DeleteByLocalID(ctx context.Context, localID string) error
}
