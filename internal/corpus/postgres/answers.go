package postgres

import (
	"context"
	"fmt"

	"github.com/askcorpus/askcorpus/internal/corpus"
	"github.com/askcorpus/askcorpus/pkg/postgres"
)

// AnswerStore is a PostgreSQL-backed corpus.AnswerStore.
type AnswerStore struct {
	db *postgres.Client
}

// NewAnswerStore creates an AnswerStore over the shared client.
func NewAnswerStore(db *postgres.Client) *AnswerStore {
	return &AnswerStore{db: db}
}

// Insert persists ans as a single statement; the caller's UUID identifier
// makes concurrent inserts collision-free.
func (s *AnswerStore) Insert(ctx context.Context, ans corpus.Answer) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO answers (id, question, answer, context) VALUES ($1, $2, $3, $4)`,
		ans.ID, ans.Question, ans.Answer, ans.Context,
	)
	if err != nil {
		return fmt.Errorf("inserting answer %s: %w", ans.ID, err)
	}
	return nil
}

// ListAll returns every recorded answer in recording order.
func (s *AnswerStore) ListAll(ctx context.Context) ([]corpus.Answer, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, question, answer, context FROM answers ORDER BY recorded_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing answers: %w", err)
	}
	defer rows.Close()

	var answers []corpus.Answer
	for rows.Next() {
		var ans corpus.Answer
		if err := rows.Scan(&ans.ID, &ans.Question, &ans.Answer, &ans.Context); err != nil {
			return nil, fmt.Errorf("scanning answer row: %w", err)
		}
		answers = append(answers, ans)
	}
	return answers, rows.Err()
}

func (s *AnswerStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM answers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting answers: %w", err)
	}
	return n, nil
}
