// Package services holds the client's application logic: the auth
// reconciliation flow, the sync worker run, cleanup of abandoned offline
// accounts and the referral state machine.
package services

import (
	"context"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
)

// Connectivity reports whether the remote store is currently reachable.
type Connectivity interface {
	Online() bool
}

// Sessions is the session slice of the secure preference store.
type Sessions interface {
	Session(ctx context.Context) (*models.SessionState, error)
	SaveSession(ctx context.Context, st models.SessionState) error
	SetMode(ctx context.Context, mode models.AuthMode) error
	OfflineCredential(ctx context.Context) (*models.OfflineCredential, error)
	SaveOfflineCredential(ctx context.Context, c models.OfflineCredential) error
	Clear(ctx context.Context) error
}
