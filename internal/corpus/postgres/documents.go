package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/askcorpus/askcorpus/internal/corpus"
	apperrors "github.com/askcorpus/askcorpus/pkg/errors"
	"github.com/askcorpus/askcorpus/pkg/postgres"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// DocumentStore is a PostgreSQL-backed corpus.DocumentStore.
type DocumentStore struct {
	db *postgres.Client
}

// NewDocumentStore creates a DocumentStore over the shared client.
func NewDocumentStore(db *postgres.Client) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE url = $1)`, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking document existence: %w", err)
	}
	return exists, nil
}

// Insert persists doc. Duplicate URLs are rejected by the UNIQUE constraint
// and surface as ErrDocumentExists.
func (s *DocumentStore) Insert(ctx context.Context, doc corpus.Document) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO documents (id, url, title, content) VALUES ($1, $2, $3, $4)`,
		doc.ID, doc.URL, doc.Title, doc.Content,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("inserting document %s: %w", doc.URL, apperrors.ErrDocumentExists)
		}
		return fmt.Errorf("inserting document %s: %w", doc.URL, err)
	}
	return nil
}

func (s *DocumentStore) GetByURL(ctx context.Context, url string) (*corpus.Document, error) {
	var doc corpus.Document
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, url, title, content FROM documents WHERE url = $1`, url,
	).Scan(&doc.ID, &doc.URL, &doc.Title, &doc.Content)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document by url: %w", err)
	}
	return &doc, nil
}

// ListAll returns the full corpus in ingestion order.
func (s *DocumentStore) ListAll(ctx context.Context) ([]corpus.Document, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, url, title, content FROM documents ORDER BY ingested_at, url`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []corpus.Document
	for rows.Next() {
		var doc corpus.Document
		if err := rows.Scan(&doc.ID, &doc.URL, &doc.Title, &doc.Content); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}
