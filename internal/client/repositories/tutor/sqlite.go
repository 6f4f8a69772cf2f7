// Package tutor reads the canned question/answer patterns used by the
// offline tutor.
package tutor

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/smartyedu/internal/dbx"
)

// Pattern is one stored prompt and its canned reply.
type Pattern struct {
	ID       int64
	Subject  string
	Pattern  string
	Response string
}

type Repository interface {
	// List returns the patterns for subject plus the subject-less ones.
	// An empty subject returns everything.
	List(ctx context.Context, subject string) ([]Pattern, error)
	Add(ctx context.Context, p Pattern) (int64, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) List(ctx context.Context, subject string) ([]Pattern, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, subject, pattern, response FROM tutor_patterns
		WHERE ? = '' OR subject = '' OR subject = ? ORDER BY id`, subject, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var result []Pattern
	for rows.Next() {
		var p Pattern
		if err := rows.Scan(&p.ID, &p.Subject, &p.Pattern, &p.Response); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patterns: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Add(ctx context.Context, p Pattern) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO tutor_patterns (subject, pattern, response) VALUES (?, ?, ?)`,
		p.Subject, p.Pattern, p.Response)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pattern: %w", err)
	}
	return res.LastInsertId()
}
