package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/users"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/dmitrijs2005/smartyedu/internal/timex"
)

// DefaultCleanupGrace is the minimum age of an abandoned offline account
// before it is deleted.
const DefaultCleanupGrace = 24 * time.Hour

// CleanupService deletes offline accounts that were never promoted.
//
// It only touches PENDING_CREATE rows older than the grace period whose
// trial has expired, never the signed-in user and never privileged roles.
// The scheduler runs it after a settled sync pass: every record that could be
// promoted has been, and what is left was rejected by the remote store.
type CleanupService struct {
	users    users.Repository
	sessions Sessions
	grace    time.Duration
	now      timex.Clock
	logger   logging.Logger
}

func NewCleanupService(u users.Repository, s Sessions, grace time.Duration, l logging.Logger) *CleanupService {
	if grace <= 0 {
		grace = DefaultCleanupGrace
	}
	return &CleanupService{users: u, sessions: s, grace: grace, now: timex.UTCNow, logger: l.With("module", "cleanup")}
}

// Run deletes eligible records and returns how many were removed.
func (c *CleanupService) Run(ctx context.Context) (int, error) {
	now := c.now()
	stale, err := c.users.ListStale(ctx, now.Add(-c.grace), models.SyncStatusPendingCreate)
	if err != nil {
		return 0, err
	}

	sess, err := c.sessions.Session(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, u := range stale {
		if sess != nil && sess.UserID == u.LocalID {
			continue
		}
		if u.Role.Privileged() || !u.TrialExpired(now) {
			continue
		}
		if err := c.users.DeleteByLocalID(ctx, u.LocalID); err != nil {
			return deleted, err
		}
		deleted++
		c.logger.Info(ctx, "abandoned offline account removed", "local_id", u.LocalID)
	}
	return deleted, nil
}
