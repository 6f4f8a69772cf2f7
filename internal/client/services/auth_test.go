package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/users"
	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/cryptox"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc      *AuthService
	users    *users.SQLiteRepository
	sessions Sessions
	conn     *fakeConn
	now      time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := setupDB(t)
	f := &authFixture{
		users:    users.NewSQLiteRepository(db),
		sessions: newSessions(db),
		conn:     newConn(false),
		now:      t0,
	}
	f.svc = NewAuthService(f.users, f.sessions, f.conn, 0, logging.Discard())
	f.svc.now = fixedClock(&f.now)
	return f
}

func TestIsUserAllowedAccess_NoSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	assert.False(t, f.svc.IsUserAllowedAccess(ctx))
	st, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AccessNoSession, st)
}

func TestRegisterOffline_StartsTrial(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u, err := f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: " alice ", Name: "Alice", Password: []byte("pass1234"), GradeLevel: "7"})
	require.NoError(t, err)

	assert.Equal(t, "alice", u.Pseudo)
	assert.Equal(t, models.SyncStatusPendingCreate, u.SyncStatus)
	assert.Equal(t, models.RolePassive, u.Role)
	assert.True(t, u.IsOffline)
	require.NotNil(t, u.TrialExpiresAt)
	assert.Equal(t, t0.Add(DefaultTrialPeriod), *u.TrialExpiresAt)

	sess, err := f.sessions.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.SessionState{UserID: u.LocalID, Mode: models.AuthModeOffline}, sess)

	cred, err := f.sessions.OfflineCredential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Pseudo)
	assert.Equal(t, u.PasswordHash, cred.PasswordHash)

	assert.True(t, f.svc.IsUserAllowedAccess(ctx))
	st, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AccessOfflineTrial, st)
}

func TestRegisterOffline_Validation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: "  ", Password: []byte("pass1234")})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: "bob", Password: []byte("abc")})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: "bob", Password: []byte("abcd")})
	require.NoError(t, err)
	_, err = f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: "bob", Password: []byte("abcd")})
	assert.ErrorIs(t, err, ErrPseudoTaken)
}

func TestAccess_TrialExpires(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: "alice", Password: []byte("pass1234")})
	require.NoError(t, err)

	f.now = t0.Add(DefaultTrialPeriod - time.Second)
	assert.True(t, f.svc.IsUserAllowedAccess(ctx))

	f.now = t0.Add(DefaultTrialPeriod)
	assert.False(t, f.svc.IsUserAllowedAccess(ctx))
	st, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AccessOfflineExpired, st)
}

func TestAccess_SyncedIgnoresTrialExpiry(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u := createUser(t, f.users, "l1", "ada", func(u *models.UserRecord) {
		u.SyncStatus = models.SyncStatusSynced
	})
	require.NoError(t, f.sessions.SaveSession(ctx, models.SessionState{UserID: u.LocalID, Mode: models.AuthModeOffline}))

	f.now = t0.Add(30 * 24 * time.Hour)
	assert.True(t, f.svc.IsUserAllowedAccess(ctx))
	st, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AccessOnlineActive, st)
}

func TestAccess_PrivilegedRolesIgnoreTrialExpiry(t *testing.T) {
	for _, role := range []models.Role{models.RoleAdmin, models.RoleBetaTester} {
		t.Run(string(role), func(t *testing.T) {
			f := newAuthFixture(t)
			ctx := context.Background()

			u := createUser(t, f.users, "l1", "ada", func(u *models.UserRecord) { u.Role = role })
			require.NoError(t, f.sessions.SaveSession(ctx, models.SessionState{UserID: u.LocalID, Mode: models.AuthModeOffline}))

			f.now = t0.Add(365 * 24 * time.Hour)
			assert.True(t, f.svc.IsUserAllowedAccess(ctx))
		})
	}
}

func TestAccess_UnsyncedWithoutTrialIsDenied(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u := createUser(t, f.users, "l1", "ada", func(u *models.UserRecord) { u.TrialExpiresAt = nil })
	require.NoError(t, f.sessions.SaveSession(ctx, models.SessionState{UserID: u.LocalID, Mode: models.AuthModeOffline}))

	assert.False(t, f.svc.IsUserAllowedAccess(ctx))
}

func TestAccess_SessionForDeletedUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sessions.SaveSession(ctx, models.SessionState{UserID: "gone", Mode: models.AuthModeOffline}))
	assert.False(t, f.svc.IsUserAllowedAccess(ctx))
}

func TestAccess_StoreFailureReturnsCachedDecision(t *testing.T) {
	db := setupDB(t)
	repo := users.NewSQLiteRepository(db)
	sessions := &failingSessions{Sessions: newSessions(db)}
	svc := NewAuthService(repo, sessions, newConn(false), 0, logging.Discard())
	now := t0
	svc.now = fixedClock(&now)
	ctx := context.Background()

	sessions.fail.Store(true)
	assert.False(t, svc.IsUserAllowedAccess(ctx), "no decision cached yet")

	sessions.fail.Store(false)
	_, err := svc.RegisterOffline(ctx, RegisterParams{Pseudo: "alice", Password: []byte("pass1234")})
	require.NoError(t, err)
	assert.True(t, svc.IsUserAllowedAccess(ctx))

	sessions.fail.Store(true)
	assert.True(t, svc.IsUserAllowedAccess(ctx), "cached decision")
	_, err = svc.State(ctx)
	assert.Error(t, err)
}

func TestLoginOffline(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	created := createUser(t, f.users, "l1", "ada", nil)

	_, err := f.svc.LoginOffline(ctx, "ada", []byte("wrong"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.LoginOffline(ctx, "nobody", []byte("secret"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, f.svc.IsUserAllowedAccess(ctx))

	u, err := f.svc.LoginOffline(ctx, "ada", []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, created.LocalID, u.LocalID)
	assert.True(t, f.svc.IsUserAllowedAccess(ctx))

	sess, err := f.sessions.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AuthModeOffline, sess.Mode)
}

func TestLoginOffline_RejectsWhenStoredCredentialDisagrees(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	createUser(t, f.users, "l1", "ada", nil)
	stale := cryptox.HashPassword([]byte("secret"), cryptox.NewSalt())
	require.NoError(t, f.sessions.SaveOfflineCredential(ctx, models.OfflineCredential{Pseudo: "ada", PasswordHash: stale}))

	_, err := f.svc.LoginOffline(ctx, "ada", []byte("secret"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	sess, err := f.sessions.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.False(t, f.svc.IsUserAllowedAccess(ctx))
}

func TestLoginOffline_CredentialOfAnotherPseudoIsReplaced(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u := createUser(t, f.users, "l1", "ada", nil)
	require.NoError(t, f.sessions.SaveOfflineCredential(ctx, models.OfflineCredential{Pseudo: "bob", PasswordHash: []byte{1, 2}}))

	_, err := f.svc.LoginOffline(ctx, "ada", []byte("secret"))
	require.NoError(t, err)
	cred, err := f.sessions.OfflineCredential(ctx)
	require.NoError(t, err)
	assert.True(t, cred.Matches(u))
}

func TestState_CredentialMismatchMeansNoSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: "alice", Password: []byte("pass1234")})
	require.NoError(t, err)
	require.True(t, f.svc.IsUserAllowedAccess(ctx))

	require.NoError(t, f.sessions.SaveOfflineCredential(ctx, models.OfflineCredential{Pseudo: "alice", PasswordHash: []byte("tampered")}))
	st, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AccessNoSession, st)
	assert.False(t, f.svc.IsUserAllowedAccess(ctx))
}

func TestLoginOffline_SyncedOnlineStartsOnline(t *testing.T) {
	f := newAuthFixture(t)
	f.conn.online.Store(true)
	ctx := context.Background()

	createUser(t, f.users, "l1", "ada", func(u *models.UserRecord) { u.SyncStatus = models.SyncStatusSynced })

	_, err := f.svc.LoginOffline(ctx, "ada", []byte("secret"))
	require.NoError(t, err)
	sess, err := f.sessions.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AuthModeOnline, sess.Mode)
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: "alice", Password: []byte("pass1234")})
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx))

	assert.False(t, f.svc.IsUserAllowedAccess(ctx))
	sess, err := f.sessions.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
	cred, err := f.sessions.OfflineCredential(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)

	_, err = f.svc.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestPromoteSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	u, err := f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: "alice", Password: []byte("pass1234")})
	require.NoError(t, err)

	ok, err := f.svc.PromoteSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "offline and unsynced")

	require.NoError(t, f.users.MarkSynced(ctx, u.LocalID, u.LocalID, u.Revision, t0))
	ok, err = f.svc.PromoteSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "still offline")

	f.conn.online.Store(true)
	ok, err = f.svc.PromoteSession(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	sess, err := f.sessions.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AuthModeOnline, sess.Mode)

	ok, err = f.svc.PromoteSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "already online")
}

func TestUpdateGradeLevelAndCurrentUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.UpdateGradeLevel(ctx, "8"), ErrNoSession)

	_, err := f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: "alice", Password: []byte("pass1234"), GradeLevel: "7"})
	require.NoError(t, err)
	require.NoError(t, f.svc.UpdateGradeLevel(ctx, "8"))

	u, err := f.svc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "8", u.GradeLevel)
}

func TestWatch_PublishesTransitions(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	ch, cancel := f.svc.Watch()
	defer cancel()

	_, err := f.svc.RegisterOffline(ctx, RegisterParams{Pseudo: "alice", Password: []byte("pass1234")})
	require.NoError(t, err)
	assert.Equal(t, models.AccessOfflineTrial, <-ch)

	require.NoError(t, f.svc.Logout(ctx))
	assert.Equal(t, models.AccessNoSession, <-ch)
}
