package documents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/server/models"
)

type Repository interface {
	// Upsert shallow-merges fields into the stored document, creating it when
	// absent, and returns the merged result.
	Upsert(ctx context.Context, collection, key string, fields map[string]any, now time.Time) (*models.Document, error)
	// Get returns common.ErrorNotFound for a missing document.
	Get(ctx context.Context, collection, key string) (*models.Document, error)
}
