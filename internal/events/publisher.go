package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/askcorpus/askcorpus/internal/corpus"
	"github.com/askcorpus/askcorpus/pkg/kafka"
)

// producer is satisfied by *kafka.Producer.
type producer interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher buffers audit events and publishes them to Kafka in the
// background. A nil *Publisher is a no-op, so callers need no enabled check.
type Publisher struct {
	producer producer
	eventCh  chan any
	logger   *slog.Logger
	done     chan struct{}
}

// NewPublisher creates a Publisher over the given producer.
func NewPublisher(p producer, bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Publisher{
		producer: p,
		eventCh:  make(chan any, bufferSize),
		logger:   slog.Default().With("component", "audit-publisher"),
		done:     make(chan struct{}),
	}
}

// Start launches the background publishing loop. On context cancellation the
// remaining buffered events are drained before the loop exits.
func (p *Publisher) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case event, ok := <-p.eventCh:
				if !ok {
					return
				}
				p.publish(ctx, event)
			case <-ctx.Done():
				p.drainRemaining()
				return
			}
		}
	}()
	p.logger.Info("audit publisher started", "buffer_size", cap(p.eventCh))
}

// DocumentIngested queues a document_ingested event.
func (p *Publisher) DocumentIngested(doc corpus.Document) {
	if p == nil {
		return
	}
	p.track(DocumentEvent{
		Type:       EventDocumentIngested,
		DocumentID: doc.ID,
		URL:        doc.URL,
		Title:      doc.Title,
		Timestamp:  time.Now().UTC(),
	})
}

// AnswerRecorded queues an answer_recorded event.
func (p *Publisher) AnswerRecorded(ans corpus.Answer) {
	if p == nil {
		return
	}
	p.track(AnswerEvent{
		Type:      EventAnswerRecorded,
		AnswerID:  ans.ID,
		Question:  ans.Question,
		Timestamp: time.Now().UTC(),
	})
}

// Close stops accepting events and waits for the loop to finish.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	close(p.eventCh)
	<-p.done
}

func (p *Publisher) track(event any) {
	select {
	case p.eventCh <- event:
	default:
		p.logger.Warn("audit event dropped (buffer full)")
	}
}

func (p *Publisher) publish(ctx context.Context, event any) {
	if err := p.producer.Publish(ctx, kafka.Event{Key: "audit", Value: event}); err != nil {
		p.logger.Error("failed to publish audit event", "error", err)
	}
}

func (p *Publisher) drainRemaining() {
	for {
		select {
		case event, ok := <-p.eventCh:
			if !ok {
				return
			}
			p.publish(context.Background(), event)
		default:
			return
		}
	}
}
