// Package corpus owns the document and answer inventories. Documents are
// ingested web pages keyed by URL; answers are recorded question/answer/
// context triples produced by the external QA engine. Storage is behind the
// DocumentStore and AnswerStore interfaces, with PostgreSQL and in-memory
// implementations in subpackages.
package corpus

import "context"

// Document is a cached, ingested web page. ID is assigned by the external
// indexing service and is the primary key; URL is unique across the corpus
// (case-sensitive exact match). Documents are never mutated or deleted.
type Document struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Answer is a recorded question/answer/context triple. ID is assigned by the
// repository. Every answered question produces a new record; questions are
// not deduplicated.
type Answer struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Context  string `json:"context"`
}

// DocumentStore persists documents. Insert must enforce URL uniqueness
// atomically (reject-on-duplicate, never check-then-act) and return
// errors.ErrDocumentExists when the URL is already present.
type DocumentStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	Insert(ctx context.Context, doc Document) error
	GetByURL(ctx context.Context, url string) (*Document, error)
	ListAll(ctx context.Context) ([]Document, error)
	Count(ctx context.Context) (int, error)
}

// AnswerStore persists answers. Insert is a single atomic operation; the
// caller supplies a collision-free identifier.
type AnswerStore interface {
	Insert(ctx context.Context, ans Answer) error
	ListAll(ctx context.Context) ([]Answer, error)
	Count(ctx context.Context) (int, error)
}
