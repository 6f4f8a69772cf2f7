package prefs

import (
	"context"
	"sync"
	"testing"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	return NewSessionStore(NewSealedRepository(NewSQLiteRepository(setupDB(t)), cryptox.NewKey()))
}

func TestSessionStore_RoundTrip(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	st, err := s.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, s.SaveSession(ctx, models.SessionState{UserID: "u1", Mode: models.AuthModeOffline}))
	st, err = s.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.SessionState{UserID: "u1", Mode: models.AuthModeOffline}, st)

	require.NoError(t, s.SetMode(ctx, models.AuthModeOnline))
	st, err = s.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AuthModeOnline, st.Mode)
}

func TestSessionStore_OfflineCredential(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	c, err := s.OfflineCredential(ctx)
	require.NoError(t, err)
	assert.Nil(t, c)

	hash := []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, s.SaveOfflineCredential(ctx, models.OfflineCredential{Pseudo: "ada", PasswordHash: hash}))

	c, err = s.OfflineCredential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada", c.Pseudo)
	assert.Equal(t, hash, c.PasswordHash)
}

func TestSessionStore_Clear(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, models.SessionState{UserID: "u1", Mode: models.AuthModeOnline}))
	require.NoError(t, s.SaveOfflineCredential(ctx, models.OfflineCredential{Pseudo: "ada", PasswordHash: []byte{1}}))
	require.NoError(t, s.Clear(ctx))

	st, err := s.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)
	c, err := s.OfflineCredential(ctx)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSessionStore_ConcurrentWriters(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.SaveSession(ctx, models.SessionState{UserID: "u1", Mode: models.AuthModeOffline}))
		}()
	}
	wg.Wait()

	st, err := s.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", st.UserID)
}
