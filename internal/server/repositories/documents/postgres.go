// Package documents persists remote documents in a PostgreSQL jsonb table.
package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/dbx"
	"github.com/dmitrijs2005/smartyedu/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, collection, key string, fields map[string]any, now time.Time) (*models.Document, error) {
	patch, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}

	query :=
		`INSERT INTO documents (collection, key, data, created_at, updated_at)
		 VALUES ($1, $2, $3::jsonb, $4, $4)
		 ON CONFLICT (collection, key) DO UPDATE
		 SET data = documents.data || EXCLUDED.data, updated_at = EXCLUDED.updated_at
		 RETURNING data, created_at, updated_at
		 `

	doc := &models.Document{Collection: collection, Key: key}
	var raw []byte
	err = r.db.QueryRowContext(ctx, query, collection, key, string(patch), now).
		Scan(&raw, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func (r *PostgresRepository) Get(ctx context.Context, collection, key string) (*models.Document, error) {
	query :=
		`SELECT data, created_at, updated_at FROM documents
		 WHERE collection = $1 AND key = $2
		 `

	doc := &models.Document{Collection: collection, Key: key}
	var raw []byte
	err := r.db.QueryRowContext(ctx, query, collection, key).Scan(&raw, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
