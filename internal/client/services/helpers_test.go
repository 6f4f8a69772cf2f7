package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/prefs"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/users"
	"github.com/dmitrijs2005/smartyedu/internal/client/storage"
	"github.com/dmitrijs2005/smartyedu/internal/cryptox"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newSessions(db *sql.DB) *prefs.SessionStore {
	return prefs.NewSessionStore(prefs.NewSealedRepository(prefs.NewSQLiteRepository(db), cryptox.NewKey()))
}

// fakeConn is a switchable Connectivity.
type fakeConn struct{ online atomic.Bool }

func newConn(online bool) *fakeConn {
	c := &fakeConn{}
	c.online.Store(online)
	return c
}

func (c *fakeConn) Online() bool { return c.online.Load() }

// fakeStore is an in-memory remote.Store with per-key failure injection.
type fakeStore struct {
	mu       sync.Mutex
	docs     map[string]map[string]any
	calls    int
	errByKey map[string]error
	onUpsert func(key string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]map[string]any{}, errByKey: map[string]error{}}
}

func (f *fakeStore) Upsert(_ context.Context, collection, key string, fields map[string]any, ts ...string) error {
	f.mu.Lock()
	f.calls++
	err := f.errByKey[key]
	hook := f.onUpsert
	f.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.docs[collection+"/"+key]
	if doc == nil {
		doc = map[string]any{}
	}
	for k, v := range fields {
		doc[k] = v
	}
	for _, k := range ts {
		doc[k] = "server-time"
	}
	f.docs[collection+"/"+key] = doc
	return nil
}

func (f *fakeStore) Get(_ context.Context, collection, key string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[collection+"/"+key], nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failingSessions wraps a Sessions and fails reads while fail is set.
type failingSessions struct {
	Sessions
	fail atomic.Bool
}

func (f *failingSessions) Session(ctx context.Context) (*models.SessionState, error) {
	if f.fail.Load() {
		return nil, errors.New("keystore locked")
	}
	return f.Sessions.Session(ctx)
}

func createUser(t *testing.T, repo users.Repository, localID, pseudo string, mutate func(u *models.UserRecord)) *models.UserRecord {
	t.Helper()
	expires := t0.Add(DefaultTrialPeriod)
	salt := cryptox.NewSalt()
	u := &models.UserRecord{
		LocalID:        localID,
		Pseudo:         pseudo,
		Name:           pseudo,
		PasswordHash:   cryptox.HashPassword([]byte("secret"), salt),
		Salt:           salt,
		CreatedAt:      t0,
		GradeLevel:     "5",
		IsOffline:      true,
		TrialExpiresAt: &expires,
		SyncStatus:     models.SyncStatusPendingCreate,
		Role:           models.RolePassive,
	}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}
