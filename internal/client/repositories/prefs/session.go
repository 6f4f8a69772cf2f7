package prefs

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/cryptox"
)

// SessionStore reads and writes the session and offline-credential keys.
// Writes are serialized so a reader never observes a half-written session.
type SessionStore struct {
	mu   sync.Mutex
	repo Repository
}

func NewSessionStore(repo Repository) *SessionStore {
	return &SessionStore{repo: repo}
}

// Session returns the persisted session, or nil when nobody is signed in.
func (s *SessionStore) Session(ctx context.Context) (*models.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, err := s.repo.Get(ctx, KeySessionUserID)
	if err != nil {
		return nil, err
	}
	if len(userID) == 0 {
		return nil, nil
	}
	mode, err := s.repo.Get(ctx, KeyAuthMode)
	if err != nil {
		return nil, err
	}
	st := &models.SessionState{UserID: string(userID), Mode: models.AuthMode(mode)}
	if st.Mode == "" {
		st.Mode = models.AuthModeOffline
	}
	return st, nil
}

// SaveSession persists st, replacing any previous session.
func (s *SessionStore) SaveSession(ctx context.Context, st models.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Set(ctx, KeySessionUserID, []byte(st.UserID)); err != nil {
		return err
	}
	return s.repo.Set(ctx, KeyAuthMode, []byte(st.Mode))
}

// SetMode changes the auth mode of the current session.
func (s *SessionStore) SetMode(ctx context.Context, mode models.AuthMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Set(ctx, KeyAuthMode, []byte(mode))
}

// OfflineCredential returns the stored credential, or nil if none.
func (s *SessionStore) OfflineCredential(ctx context.Context) (*models.OfflineCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pseudo, err := s.repo.Get(ctx, KeyOfflinePseudo)
	if err != nil {
		return nil, err
	}
	if len(pseudo) == 0 {
		return nil, nil
	}
	encoded, err := s.repo.Get(ctx, KeyOfflinePasswordHash)
	if err != nil {
		return nil, err
	}
	hash, err := cryptox.DecodeHash(string(encoded))
	if err != nil {
		return nil, err
	}
	return &models.OfflineCredential{Pseudo: string(pseudo), PasswordHash: hash}, nil
}

func (s *SessionStore) SaveOfflineCredential(ctx context.Context, c models.OfflineCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Set(ctx, KeyOfflinePseudo, []byte(c.Pseudo)); err != nil {
		return err
	}
	return s.repo.Set(ctx, KeyOfflinePasswordHash, []byte(cryptox.EncodeHash(c.PasswordHash)))
}

// Clear removes the session and the offline credential.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range []string{KeySessionUserID, KeyAuthMode, KeyOfflinePseudo, KeyOfflinePasswordHash} {
		if err := s.repo.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
