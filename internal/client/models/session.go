package models

import "crypto/subtle"

// AuthMode is the persisted authentication mode of the current session.
type AuthMode string

const (
	AuthModeOffline AuthMode = "OFFLINE"
	AuthModeOnline  AuthMode = "ONLINE"
)

// SessionState is what the secure preference store remembers about the
// signed-in user. A nil *SessionState means there is no session.
type SessionState struct {
	UserID string
	Mode   AuthMode
}

// OfflineCredential is the (pseudo, password hash) pair used to validate an
// offline re-login.
type OfflineCredential struct {
	Pseudo       string
	PasswordHash []byte
}

// Matches reports whether the credential was issued for u as it is stored now.
func (c *OfflineCredential) Matches(u *UserRecord) bool {
	if c == nil || u == nil || c.Pseudo != u.Pseudo {
		return false
	}
	return subtle.ConstantTimeCompare(c.PasswordHash, u.PasswordHash) == 1
}

// AccessState is the per-user access mode derived by the auth flow.
type AccessState string

const (
	AccessNoSession      AccessState = "NoSession"
	AccessOfflineTrial   AccessState = "OfflineTrial"
	AccessOfflineExpired AccessState = "OfflineExpired"
	AccessOnlineActive   AccessState = "OnlineActive"
)

// Allowed reports whether the state grants access to the app.
func (s AccessState) Allowed() bool {
	return s == AccessOfflineTrial || s == AccessOnlineActive
}
