// Package memory provides in-memory document and answer stores for tests and
// the no-database development mode. State is process-scoped and lost on
// restart.
package memory

import (
	"context"
	"sync"

	"github.com/askcorpus/askcorpus/internal/corpus"
	apperrors "github.com/askcorpus/askcorpus/pkg/errors"
)

// DocumentStore is a mutex-guarded in-memory corpus.DocumentStore.
type DocumentStore struct {
	mu    sync.RWMutex
	byURL map[string]corpus.Document
	order []string
}

// NewDocumentStore creates an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{byURL: make(map[string]corpus.Document)}
}

func (s *DocumentStore) Exists(ctx context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byURL[url]
	return ok, nil
}

// Insert stores doc, rejecting duplicate URLs. The existence check and the
// write happen under one lock, so racing inserts for the same URL resolve to
// exactly one winner.
func (s *DocumentStore) Insert(ctx context.Context, doc corpus.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byURL[doc.URL]; ok {
		return apperrors.ErrDocumentExists
	}
	s.byURL[doc.URL] = doc
	s.order = append(s.order, doc.URL)
	return nil
}

func (s *DocumentStore) GetByURL(ctx context.Context, url string) (*corpus.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.byURL[url]
	if !ok {
		return nil, apperrors.ErrDocumentNotFound
	}
	return &doc, nil
}

// ListAll returns documents in insertion order.
func (s *DocumentStore) ListAll(ctx context.Context) ([]corpus.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]corpus.Document, 0, len(s.order))
	for _, url := range s.order {
		docs = append(docs, s.byURL[url])
	}
	return docs, nil
}

func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byURL), nil
}

// AnswerStore is a mutex-guarded in-memory corpus.AnswerStore.
type AnswerStore struct {
	mu      sync.RWMutex
	byID    map[string]struct{}
	answers []corpus.Answer
}

// NewAnswerStore creates an empty AnswerStore.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{byID: make(map[string]struct{})}
}

func (s *AnswerStore) Insert(ctx context.Context, ans corpus.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[ans.ID]; ok {
		return apperrors.Newf(apperrors.ErrInternal, 500, "duplicate answer id %s", ans.ID)
	}
	s.byID[ans.ID] = struct{}{}
	s.answers = append(s.answers, ans)
	return nil
}

// ListAll returns answers in insertion order.
func (s *AnswerStore) ListAll(ctx context.Context) ([]corpus.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]corpus.Answer, len(s.answers))
	copy(out, s.answers)
	return out, nil
}

func (s *AnswerStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers), nil
}
