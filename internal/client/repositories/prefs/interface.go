// Package prefs is the Secure Preference Store: a small key/value table
// whose values are sealed under a per-device key, plus a session-oriented
// wrapper used by the auth flow.
package prefs

import (
	"context"
)

// Well-known keys.
const (
	KeySessionUserID       = "session_user_id"
	KeyOfflinePseudo       = "offline_pseudo"
	KeyOfflinePasswordHash = "offline_password_hash"
	KeyAuthMode            = "auth_mode"
)

// Repository is a byte-valued key/value store. Get of a missing key
// returns (nil, nil).
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
