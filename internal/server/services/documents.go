// Package services holds the server's business rules on top of the
// repositories.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/dmitrijs2005/smartyedu/internal/rpc"
	"github.com/dmitrijs2005/smartyedu/internal/server/models"
	"github.com/dmitrijs2005/smartyedu/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/smartyedu/internal/timex"
)

// forbiddenFields never reach the document store: credentials stay on the
// device.
var forbiddenFields = map[string]struct{}{
	"password":     {},
	"passwordHash": {},
	"salt":         {},
}

type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	collections map[string]struct{}
	now         timex.Clock
	logger      logging.Logger
}

// NewDocumentService accepts writes only to the named collections.
func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger, collections ...string) *DocumentService {
	allowed := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		allowed[c] = struct{}{}
	}
	return &DocumentService{
		db:          db,
		repomanager: m,
		collections: allowed,
		now:         timex.UTCNow,
		logger:      l.With("module", "documents"),
	}
}

// Upsert validates req, stamps the server timestamp fields and merges the
// result into the stored document.
func (s *DocumentService) Upsert(ctx context.Context, req rpc.UpsertRequest) (*models.Document, error) {
	if err := s.validateAddress(req.Collection, req.Key); err != nil {
		return nil, err
	}
	for name := range req.Fields {
		if _, bad := forbiddenFields[name]; bad {
			return nil, fmt.Errorf("%w: field %q is not accepted", common.ErrorValidation, name)
		}
	}

	now := s.now()
	fields := make(map[string]any, len(req.Fields)+len(req.ServerTimestampFields))
	for k, v := range req.Fields {
		fields[k] = v
	}
	for _, name := range req.ServerTimestampFields {
		if name == "" {
			return nil, fmt.Errorf("%w: empty server timestamp field", common.ErrorValidation)
		}
		fields[name] = now.Format(time.RFC3339Nano)
	}

	doc, err := s.repomanager.Documents(s.db).Upsert(ctx, req.Collection, req.Key, fields, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "document upserted", "collection", req.Collection, "key", req.Key, "fields", len(fields))
	return doc, nil
}

// Get returns common.ErrorNotFound for a missing document.
func (s *DocumentService) Get(ctx context.Context, collection, key string) (*models.Document, error) {
	if err := s.validateAddress(collection, key); err != nil {
		return nil, err
	}
	return s.repomanager.Documents(s.db).Get(ctx, collection, key)
}

func (s *DocumentService) validateAddress(collection, key string) error {
	if _, ok := s.collections[collection]; !ok {
		return fmt.Errorf("%w: unknown collection %q", common.ErrorValidation, collection)
	}
	if key == "" || strings.ContainsAny(key, "/\x00") {
		return fmt.Errorf("%w: invalid key %q", common.ErrorValidation, key)
	}
	return nil
}
