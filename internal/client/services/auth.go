package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/users"
	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/cryptox"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/dmitrijs2005/smartyedu/internal/timex"
	"github.com/dmitrijs2005/smartyedu/internal/watch"
	"github.com/google/uuid"
)

// DefaultTrialPeriod is how long an unsynced offline account may be used.
const DefaultTrialPeriod = 24 * time.Hour

// MinPasswordLength is the shortest accepted offline password.
const MinPasswordLength = 4

// RegisterParams describes a new offline account.
type RegisterParams struct {
	Pseudo     string
	Name       string
	Password   []byte
	GradeLevel string
}

// AuthService decides whether the current session may use the app and owns
// the session lifecycle (offline register/login, logout, promotion).
//
// Read paths never fail: when a store lookup fails the last decision is
// returned, which starts out as "denied".
type AuthService struct {
	users    users.Repository
	sessions Sessions
	conn     Connectivity
	trial    time.Duration
	now      timex.Clock
	logger   logging.Logger

	mu           sync.Mutex
	lastDecision bool
	states       *watch.Broadcaster[models.AccessState]
}

func NewAuthService(u users.Repository, s Sessions, c Connectivity, trial time.Duration, l logging.Logger) *AuthService {
	if trial <= 0 {
		trial = DefaultTrialPeriod
	}
	return &AuthService{
		users:    u,
		sessions: s,
		conn:     c,
		trial:    trial,
		now:      timex.UTCNow,
		logger:   l.With("module", "auth"),
		states:   watch.NewBroadcaster[models.AccessState](),
	}
}

// IsUserAllowedAccess reports whether the current session grants access.
func (a *AuthService) IsUserAllowedAccess(ctx context.Context) bool {
	st, err := a.State(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.logger.Warn(ctx, "access check degraded to cached decision", "error", err, "allowed", a.lastDecision)
		return a.lastDecision
	}
	a.lastDecision = st.Allowed()
	return a.lastDecision
}

// State derives the access state of the current session.
func (a *AuthService) State(ctx context.Context) (models.AccessState, error) {
	sess, err := a.sessions.Session(ctx)
	if err != nil {
		return models.AccessNoSession, fmt.Errorf("read session: %w", err)
	}
	if sess == nil {
		return models.AccessNoSession, nil
	}

	u, err := a.users.GetByLocalID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.AccessNoSession, nil
		}
		return models.AccessNoSession, fmt.Errorf("read user: %w", err)
	}

	cred, err := a.sessions.OfflineCredential(ctx)
	if err != nil {
		return models.AccessNoSession, fmt.Errorf("read credential: %w", err)
	}
	if cred != nil && !cred.Matches(u) {
		return models.AccessNoSession, nil
	}
	return accessState(u, a.now()), nil
}

func accessState(u *models.UserRecord, now time.Time) models.AccessState {
	switch {
	case u.SyncStatus == models.SyncStatusSynced || u.Role == models.RoleActive:
		return models.AccessOnlineActive
	case u.Role.Privileged():
		return models.AccessOfflineTrial
	case u.TrialExpiresAt != nil && !u.TrialExpired(now):
		return models.AccessOfflineTrial
	default:
		return models.AccessOfflineExpired
	}
}

// Watch streams access-state changes of the current session.
func (a *AuthService) Watch() (<-chan models.AccessState, func()) {
	return a.states.Subscribe(4)
}

// Refresh recomputes the access state and publishes it to watchers.
func (a *AuthService) Refresh(ctx context.Context) {
	st, err := a.State(ctx)
	if err != nil {
		a.logger.Warn(ctx, "refresh access state", "error", err)
		return
	}
	a.mu.Lock()
	a.lastDecision = st.Allowed()
	a.mu.Unlock()
	a.states.Publish(st)
}

// RegisterOffline creates a local account with a trial window and signs it in.
func (a *AuthService) RegisterOffline(ctx context.Context, p RegisterParams) (*models.UserRecord, error) {
	p.Pseudo = strings.TrimSpace(p.Pseudo)
	if p.Pseudo == "" {
		return nil, fmt.Errorf("%w: pseudo is required", common.ErrorValidation)
	}
	if len(p.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must have at least %d characters", common.ErrorValidation, MinPasswordLength)
	}

	now := a.now()
	expires := now.Add(a.trial)
	salt := cryptox.NewSalt()
	u := &models.UserRecord{
		LocalID:        uuid.NewString(),
		Pseudo:         p.Pseudo,
		Name:           p.Name,
		PasswordHash:   cryptox.HashPassword(p.Password, salt),
		Salt:           salt,
		CreatedAt:      now,
		GradeLevel:     p.GradeLevel,
		IsOffline:      true,
		TrialExpiresAt: &expires,
		SyncStatus:     models.SyncStatusPendingCreate,
		Role:           models.RolePassive,
	}

	if err := a.users.Create(ctx, u); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, ErrPseudoTaken
		}
		return nil, err
	}
	if err := a.signIn(ctx, u); err != nil {
		return nil, err
	}

	a.logger.Info(ctx, "offline account registered", "local_id", u.LocalID)
	return u, nil
}

// LoginOffline verifies the password against the locally stored hash. A
// credential left from an earlier sign-in of the same pseudo must still agree
// with the stored record.
func (a *AuthService) LoginOffline(ctx context.Context, pseudo string, password []byte) (*models.UserRecord, error) {
	u, err := a.users.GetByPseudo(ctx, strings.TrimSpace(pseudo))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !cryptox.VerifyPassword(password, u.Salt, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	cred, err := a.sessions.OfflineCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}
	if cred != nil && cred.Pseudo == u.Pseudo && !cred.Matches(u) {
		a.logger.Warn(ctx, "stored credential disagrees with local record", "local_id", u.LocalID)
		return nil, ErrInvalidCredentials
	}

	if err := a.signIn(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (a *AuthService) signIn(ctx context.Context, u *models.UserRecord) error {
	mode := models.AuthModeOffline
	if u.SyncStatus == models.SyncStatusSynced && a.conn.Online() {
		mode = models.AuthModeOnline
	}
	if err := a.sessions.SaveOfflineCredential(ctx, models.OfflineCredential{Pseudo: u.Pseudo, PasswordHash: u.PasswordHash}); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if err := a.sessions.SaveSession(ctx, models.SessionState{UserID: u.LocalID, Mode: mode}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	a.Refresh(ctx)
	return nil
}

// Logout clears the session and the offline credential.
func (a *AuthService) Logout(ctx context.Context) error {
	if err := a.sessions.Clear(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	a.lastDecision = false
	a.mu.Unlock()
	a.states.Publish(models.AccessNoSession)
	return nil
}

// PromoteSession switches an OFFLINE session to ONLINE once its record is
// synced and the remote store is reachable. It reports whether it switched.
func (a *AuthService) PromoteSession(ctx context.Context) (bool, error) {
	sess, err := a.sessions.Session(ctx)
	if err != nil {
		return false, err
	}
	if sess == nil || sess.Mode == models.AuthModeOnline || !a.conn.Online() {
		return false, nil
	}

	u, err := a.users.GetByLocalID(ctx, sess.UserID)
	if err != nil {
		return false, err
	}
	if u.SyncStatus != models.SyncStatusSynced {
		return false, nil
	}

	if err := a.sessions.SetMode(ctx, models.AuthModeOnline); err != nil {
		return false, err
	}
	a.logger.Info(ctx, "session promoted", "local_id", u.LocalID)
	a.Refresh(ctx)
	return true, nil
}

// CurrentUser returns the record of the signed-in user.
func (a *AuthService) CurrentUser(ctx context.Context) (*models.UserRecord, error) {
	sess, err := a.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	return a.users.GetByLocalID(ctx, sess.UserID)
}

// Session returns the persisted session, nil when signed out.
func (a *AuthService) Session(ctx context.Context) (*models.SessionState, error) {
	return a.sessions.Session(ctx)
}

// UpdateGradeLevel changes the signed-in user's grade.
func (a *AuthService) UpdateGradeLevel(ctx context.Context, gradeLevel string) error {
	sess, err := a.sessions.Session(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoSession
	}
	return a.users.UpdateGradeLevel(ctx, sess.UserID, gradeLevel)
}
