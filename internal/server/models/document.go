// Package models holds the server's persistent types.
package models

import "time"

// Document is one JSON object addressed by (Collection, Key).
type Document struct {
	Collection string
	Key        string
	Data       map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
