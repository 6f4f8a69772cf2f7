package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/client/remote"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/prefs"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/users"
	"github.com/dmitrijs2005/smartyedu/internal/client/services"
	"github.com/dmitrijs2005/smartyedu/internal/client/storage"
	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rejectingStore refuses every write for good.
type rejectingStore struct{}

func (rejectingStore) Upsert(context.Context, string, string, map[string]any, ...string) error {
	return &remote.Error{Op: "upsert", Kind: remote.KindTerminal, Err: errors.New("rejected")}
}
func (rejectingStore) Get(context.Context, string, string) (map[string]any, error) { return nil, nil }
func (rejectingStore) Ping(context.Context) error                                  { return nil }
func (rejectingStore) Close() error                                                { return nil }

func TestWorker_CleanupRemovesAbandonedRejectedAccount(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := users.NewSQLiteRepository(db)
	sessions := prefs.NewSessionStore(prefs.NewSQLiteRepository(db))

	created := time.Now().UTC().Add(-72 * time.Hour)
	expired := created.Add(24 * time.Hour)
	require.NoError(t, repo.Create(ctx, &models.UserRecord{
		LocalID:        "ghost",
		Pseudo:         "ghost",
		PasswordHash:   []byte("h"),
		Salt:           []byte("s"),
		CreatedAt:      created,
		IsOffline:      true,
		TrialExpiresAt: &expired,
		SyncStatus:     models.SyncStatusPendingCreate,
		Role:           models.RolePassive,
	}))

	syncer := services.NewSyncService(repo, rejectingStore{}, staticConn(true), logging.Discard())
	cleanup := services.NewCleanupService(repo, sessions, time.Hour, logging.Discard())
	w := NewWorker(syncer, staticConn(true), fastConfig(), logging.Discard(),
		Hook{Name: "cleanup", When: AfterSettled, Fn: func(ctx context.Context) error {
			_, err := cleanup.Run(ctx)
			return err
		}})

	rep, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Terminal)

	_, err = repo.GetByLocalID(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
