// Package postgres provides PostgreSQL-backed document and answer stores.
// URL uniqueness is enforced by a database constraint, so racing ingests of
// the same URL resolve to exactly one winner.
package postgres

import (
	"context"
	"fmt"

	"github.com/askcorpus/askcorpus/pkg/postgres"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		url         TEXT NOT NULL UNIQUE,
		title       TEXT NOT NULL,
		content     TEXT NOT NULL,
		ingested_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS answers (
		id          TEXT PRIMARY KEY,
		question    TEXT NOT NULL,
		answer      TEXT NOT NULL,
		context     TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the documents and answers tables if they do not
// exist. The statements are idempotent.
func EnsureSchema(ctx context.Context, client *postgres.Client) error {
	for _, stmt := range schemaStatements {
		if _, err := client.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}
