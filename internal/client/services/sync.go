package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/client/remote"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/users"
	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/dmitrijs2005/smartyedu/internal/timex"
)

// Outcome is the run-level result of a sync run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeRetry   Outcome = "retry"
)

// SyncedAtField is set by the remote store to its own commit time.
const SyncedAtField = "syncedAt"

// RunReport summarizes one sync run.
type RunReport struct {
	Outcome   Outcome
	Pending   int
	Synced    int
	Retryable int
	Terminal  int
	Offline   bool
}

// Failed is the number of records that did not sync in this run.
func (r RunReport) Failed() int { return r.Retryable + r.Terminal }

// Settled reports whether the run reached the remote store and every pending
// record was either synced or rejected for good. Records still unsynced after
// a settled run cannot be promoted by retrying.
func (r RunReport) Settled() bool { return !r.Offline && r.Retryable == 0 }

// SyncService promotes pending local user records to the remote store.
type SyncService struct {
	users  users.Repository
	store  remote.Store
	conn   Connectivity
	now    timex.Clock
	logger logging.Logger
}

func NewSyncService(u users.Repository, s remote.Store, c Connectivity, l logging.Logger) *SyncService {
	return &SyncService{users: u, store: s, conn: c, now: timex.UTCNow, logger: l.With("module", "sync")}
}

// Run performs one sync pass. Remote failures never surface as errors: they
// are tallied in the report and turn the outcome into OutcomeRetry. The
// error is non-nil only when the pending records cannot be read locally.
func (s *SyncService) Run(ctx context.Context) (RunReport, error) {
	if !s.conn.Online() {
		s.logger.Debug(ctx, "sync skipped, offline")
		return RunReport{Outcome: OutcomeRetry, Offline: true}, nil
	}

	pending, err := s.users.ListPending(ctx)
	if err != nil {
		return RunReport{Outcome: OutcomeRetry}, fmt.Errorf("list pending users: %w", err)
	}

	report := RunReport{Pending: len(pending)}
	for i, u := range pending {
		if ctx.Err() != nil {
			report.Retryable += len(pending) - i
			s.logger.Warn(ctx, "sync cancelled", "remaining", len(pending)-i)
			break
		}
		s.syncOne(ctx, u, &report)
	}

	report.Outcome = OutcomeSuccess
	if report.Failed() > 0 {
		report.Outcome = OutcomeRetry
	}
	s.logger.Info(ctx, "sync finished", "outcome", report.Outcome, "pending", report.Pending,
		"synced", report.Synced, "retryable", report.Retryable, "terminal", report.Terminal)
	return report, nil
}

func (s *SyncService) syncOne(ctx context.Context, u *models.UserRecord, report *RunReport) {
	key := u.RemoteKey()
	log := s.logger.With("local_id", u.LocalID, "remote_key", key)

	if err := s.store.Upsert(ctx, common.UsersCollection, key, projection(u), SyncedAtField); err != nil {
		if remote.IsTerminal(err) {
			report.Terminal++
			log.Error(ctx, "remote rejected user record", "error", err)
		} else {
			report.Retryable++
			log.Warn(ctx, "remote upsert failed", "error", err)
		}
		return
	}

	// Acknowledged by the remote store, rewrite locally.
	if err := s.users.MarkSynced(ctx, u.LocalID, key, u.Revision, s.now()); err != nil {
		report.Retryable++
		if errors.Is(err, common.ErrorConflict) {
			log.Info(ctx, "record changed during upload, will sync again")
		} else {
			log.Error(ctx, "local rewrite failed", "error", err)
		}
		return
	}
	report.Synced++
}

// PullRole copies the role stored in the remote document of a synced record
// into the local row, so roles granted remotely reach the device. It reports
// whether the local role changed. Pending records are left to Run.
func (s *SyncService) PullRole(ctx context.Context, localID string) (bool, error) {
	if !s.conn.Online() {
		return false, nil
	}

	u, err := s.users.GetByLocalID(ctx, localID)
	if err != nil {
		return false, err
	}
	if u.Pending() {
		return false, nil
	}

	doc, err := s.store.Get(ctx, common.UsersCollection, u.RemoteKey())
	if err != nil {
		return false, fmt.Errorf("get remote user: %w", err)
	}
	raw, _ := doc["role"].(string)
	role := models.Role(raw)
	if !role.Valid() || role == u.Role {
		return false, nil
	}

	log := s.logger.With("local_id", u.LocalID)
	prev := u.Role
	u.Role = role
	if err := s.users.Upsert(ctx, u); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			log.Info(ctx, "record changed while pulling role")
			return false, nil
		}
		return false, err
	}
	log.Info(ctx, "role pulled from remote", "from", prev, "to", role)
	return true, nil
}

// projection is the remote view of u. Credentials never leave the device.
func projection(u *models.UserRecord) map[string]any {
	return map[string]any{
		"localId":    u.LocalID,
		"pseudo":     u.Pseudo,
		"name":       u.Name,
		"gradeLevel": u.GradeLevel,
		"createdAt":  u.CreatedAt.UnixMilli(),
		"role":       string(models.RoleActive),
	}
}
