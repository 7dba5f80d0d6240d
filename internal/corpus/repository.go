package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/askcorpus/askcorpus/pkg/errors"
	"github.com/google/uuid"
)

// Fetcher retrieves the extracted text and title of a web page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (title, text string, err error)
}

// Indexer registers a document with the external indexing service and
// returns its identifier. replace=true makes registration idempotent so a
// re-ingest after a local store reset does not error on the remote side.
type Indexer interface {
	AddDocument(ctx context.Context, title, text string, replace bool) (string, error)
}

// Repository is the document repository: it ingests web pages exactly once
// per URL and exposes the current corpus.
type Repository struct {
	store   DocumentStore
	fetcher Fetcher
	indexer Indexer
	logger  *slog.Logger
}

// NewRepository creates a document repository over the given store and
// external collaborators.
func NewRepository(store DocumentStore, fetcher Fetcher, indexer Indexer) *Repository {
	return &Repository{
		store:   store,
		fetcher: fetcher,
		indexer: indexer,
		logger:  slog.Default().With("component", "document-repository"),
	}
}

// Exists reports whether a document with the exact URL is stored.
func (r *Repository) Exists(ctx context.Context, url string) (bool, error) {
	return r.store.Exists(ctx, url)
}

// Ingest fetches the page at url, registers it with the indexing service,
// and persists the resulting document. When a concurrent request wins the
// race for the same URL, Ingest returns the winning document instead of an
// error; the extra remote registration is harmless because registration uses
// replace semantics.
func (r *Repository) Ingest(ctx context.Context, url string) (*Document, error) {
	title, text, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	id, err := r.indexer.AddDocument(ctx, title, text, true)
	if err != nil {
		return nil, fmt.Errorf("indexing %s: %w", url, err)
	}

	doc := Document{ID: id, URL: url, Title: title, Content: text}
	if err := r.store.Insert(ctx, doc); err != nil {
		if errors.Is(err, apperrors.ErrDocumentExists) {
			r.logger.Info("lost ingestion race, using existing document", "url", url)
			return r.store.GetByURL(ctx, url)
		}
		return nil, fmt.Errorf("persisting %s: %w", url, err)
	}

	r.logger.Info("document ingested", "url", url, "doc_id", id, "title", title)
	return &doc, nil
}

// ListAll returns a complete snapshot of the corpus.
func (r *Repository) ListAll(ctx context.Context) ([]Document, error) {
	return r.store.ListAll(ctx)
}

// Count returns the number of documents in the corpus.
func (r *Repository) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

// AnswerCache records every answer produced by the QA engine.
type AnswerCache struct {
	store  AnswerStore
	logger *slog.Logger
}

// NewAnswerCache creates an answer cache over the given store.
func NewAnswerCache(store AnswerStore) *AnswerCache {
	return &AnswerCache{
		store:  store,
		logger: slog.Default().With("component", "answer-cache"),
	}
}

// Record persists a new answer. Identifiers are random UUIDs, so concurrent
// recordings can never collide.
func (c *AnswerCache) Record(ctx context.Context, question, answerText, answerContext string) (*Answer, error) {
	ans := Answer{
		ID:       uuid.NewString(),
		Question: question,
		Answer:   answerText,
		Context:  answerContext,
	}
	if err := c.store.Insert(ctx, ans); err != nil {
		return nil, fmt.Errorf("recording answer: %w", err)
	}
	c.logger.Debug("answer recorded", "answer_id", ans.ID)
	return &ans, nil
}

// ListAll returns every recorded answer.
func (c *AnswerCache) ListAll(ctx context.Context) ([]Answer, error) {
	return c.store.ListAll(ctx)
}

// Count returns the number of recorded answers.
func (c *AnswerCache) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}
