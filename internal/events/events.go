// Package events publishes corpus audit events (document ingestions, answer
// recordings) to a Kafka topic. Publishing is buffered and best-effort: a
// full buffer drops events rather than blocking request handlers.
package events

import "time"

type EventType string

const (
	EventDocumentIngested EventType = "document_ingested"
	EventAnswerRecorded   EventType = "answer_recorded"
)

// DocumentEvent is emitted after a document is persisted.
type DocumentEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Timestamp  time.Time `json:"timestamp"`
}

// AnswerEvent is emitted after an answer is recorded.
type AnswerEvent struct {
	Type      EventType `json:"type"`
	AnswerID  string    `json:"answer_id"`
	Question  string    `json:"question"`
	Timestamp time.Time `json:"timestamp"`
}
