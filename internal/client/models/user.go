// Package models defines client-side data models used by the smartyedu core.
package models

import "time"

// SyncStatus tracks whether a local row still has to reach the remote store.
type SyncStatus string

const (
	SyncStatusSynced        SyncStatus = "SYNCED"
	SyncStatusPendingCreate SyncStatus = "PENDING_CREATE"
	SyncStatusPendingUpdate SyncStatus = "PENDING_UPDATE"
)

// Role is the account role as known locally.
type Role string

const (
	RoleActive     Role = "ACTIVE"
	RolePassive    Role = "PASSIVE"
	RoleAdmin      Role = "ADMIN"
	RoleBetaTester Role = "BETA_TESTER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleActive, RolePassive, RoleAdmin, RoleBetaTester:
		return true
	}
	return false
}

// Privileged reports whether the role bypasses the trial window.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleBetaTester
}

// UserRecord is a locally persisted identity.
//
// LocalID is assigned at registration and never reused. IdentityID stays
// empty until the record is promoted; after promotion it equals the remote
// document key.
type UserRecord struct {
	IdentityID     string
	LocalID        string
	Pseudo         string
	Name           string
	PasswordHash   []byte
	Salt           []byte
	CreatedAt      time.Time
	GradeLevel     string
	IsOffline      bool
	TrialExpiresAt *time.Time
	SyncStatus     SyncStatus
	Role           Role
	LastSyncAt     *time.Time

	// Revision increases on every local mutation and guards the sync rewrite.
	Revision int64
}

// Pending reports whether the record still needs a remote write.
func (u *UserRecord) Pending() bool {
	return u.SyncStatus != SyncStatusSynced
}

// TrialExpired reports whether the trial window has passed at now.
// A record without a trial expiry has no trial to expire.
func (u *UserRecord) TrialExpired(now time.Time) bool {
	return u.TrialExpiresAt != nil && !now.Before(*u.TrialExpiresAt)
}

// RemoteKey returns the document key to use for the remote upsert: the
// identity id once it has been assigned and differs from the local id,
// the local id otherwise.
func (u *UserRecord) RemoteKey() string {
	if u.IdentityID != "" && u.IdentityID != u.LocalID {
		return u.IdentityID
	}
	return u.LocalID
}
