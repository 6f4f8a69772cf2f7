// Package remote talks to the cloud document store. Two backends implement
// Store: the project's gRPC document service and an S3 bucket holding one
// JSON object per document.
package remote

import "context"

// Store is an opaque document store addressed by (collection, key).
//
// Upsert merges fields into the document, creating it if absent. Each name in
// serverTimestampFields is set to the store's own clock, never the caller's.
// Get of a missing document returns (nil, nil).
type Store interface {
	Upsert(ctx context.Context, collection, key string, fields map[string]any, serverTimestampFields ...string) error
	Get(ctx context.Context, collection, key string) (map[string]any, error)
	Ping(ctx context.Context) error
	Close() error
}
