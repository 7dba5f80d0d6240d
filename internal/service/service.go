// Package service orchestrates a question request: ensure the named page is
// in the corpus, ask the QA engine against every known document, and record
// the winning answer.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/askcorpus/askcorpus/internal/corpus"
	"github.com/askcorpus/askcorpus/internal/events"
	"github.com/askcorpus/askcorpus/internal/listcache"
	"github.com/askcorpus/askcorpus/internal/qa"
	apperrors "github.com/askcorpus/askcorpus/pkg/errors"
	"github.com/askcorpus/askcorpus/pkg/logger"
	"github.com/askcorpus/askcorpus/pkg/metrics"
	"github.com/askcorpus/askcorpus/pkg/tracing"
)

// Engine answers a question scoped to a set of document identifiers,
// returning ranked spans best-first.
type Engine interface {
	Answer(ctx context.Context, question string, documentIDs []string) ([]qa.Span, error)
}

// Result is the outcome of an answered question.
type Result struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Context  string `json:"context"`
}

// Service drives the question state machine over the document repository,
// the answer cache, and the QA engine.
type Service struct {
	docs    *corpus.Repository
	answers *corpus.AnswerCache
	engine  Engine
	cache   *listcache.Cache
	events  *events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Service. cache, publisher, and m may be nil.
func New(docs *corpus.Repository, answers *corpus.AnswerCache, engine Engine, cache *listcache.Cache, publisher *events.Publisher, m *metrics.Metrics) *Service {
	return &Service{
		docs:    docs,
		answers: answers,
		engine:  engine,
		cache:   cache,
		events:  publisher,
		metrics: m,
		logger:  slog.Default().With("component", "service"),
	}
}

// Ask runs one request through the state machine: validate the question,
// ingest the URL if given and unseen, answer against the whole corpus, and
// record the top answer. A failure at any step aborts the request; nothing
// is rolled back (remote registration is idempotent, so a retry recovers).
func (s *Service) Ask(ctx context.Context, pageURL, question string) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "ask", logger.RequestIDFromContext(ctx))
	defer func() {
		span.End()
		span.Log()
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		s.countAnswer("bad_request")
		return nil, apperrors.New(apperrors.ErrBadRequest, http.StatusBadRequest, "you must ask a question")
	}
	pageURL = strings.TrimSpace(pageURL)
	span.SetAttr("has_url", pageURL != "")

	if pageURL != "" {
		if err := s.ensureIngested(ctx, pageURL); err != nil {
			s.countAnswer("error")
			return nil, err
		}
	} else {
		n, err := s.docs.Count(ctx)
		if err != nil {
			s.countAnswer("error")
			return nil, err
		}
		if n == 0 {
			s.countAnswer("no_documents")
			return nil, apperrors.New(apperrors.ErrNoDocuments, http.StatusBadRequest,
				"you have no current documents; specify a webpage to start")
		}
	}

	result, err := s.answer(ctx, question)
	if err != nil {
		s.countAnswer("error")
		return nil, err
	}
	s.countAnswer("answered")
	return result, nil
}

// ensureIngested ingests pageURL unless a document with that URL is already
// stored. A lost ingestion race is benign: the repository resolves it to the
// winning document.
func (s *Service) ensureIngested(ctx context.Context, pageURL string) error {
	ctx, span := tracing.StartChildSpan(ctx, "ingest")
	defer span.End()
	span.SetAttr("url", pageURL)

	exists, err := s.docs.Exists(ctx, pageURL)
	if err != nil {
		return err
	}
	if exists {
		span.SetAttr("dedup", true)
		s.countIngest("dedup")
		return nil
	}

	doc, err := s.docs.Ingest(ctx, pageURL)
	if err != nil {
		s.countIngest("error")
		return err
	}
	s.countIngest("ingested")
	s.events.DocumentIngested(*doc)
	s.cache.Invalidate(ctx)
	s.updateCorpusGauge(ctx)

	log := logger.FromContext(ctx)
	log.Info("corpus grew", "url", pageURL, "doc_id", doc.ID)
	return nil
}

// answer asks the engine against the full current corpus and records the top
// span. The id set is read after any ingestion, so it includes every
// previously-ingested URL; it may race with another in-flight ingestion.
func (s *Service) answer(ctx context.Context, question string) (*Result, error) {
	ctx, span := tracing.StartChildSpan(ctx, "answer")
	defer span.End()

	docs, err := s.docs.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	span.SetAttr("corpus_size", len(ids))

	spans, err := s.engine.Answer(ctx, question, ids)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return nil, apperrors.New(apperrors.ErrEngineRejected, http.StatusBadGateway, "engine returned no answers")
	}
	top := spans[0]

	ans, err := s.answers.Record(ctx, question, top.AnswerText, top.AnswerContext)
	if err != nil {
		return nil, err
	}
	s.events.AnswerRecorded(*ans)
	s.cache.Invalidate(ctx)

	return &Result{
		Question: question,
		Answer:   ans.Answer,
		Context:  ans.Context,
	}, nil
}

// Documents returns the corpus listing, served through the listing cache.
func (s *Service) Documents(ctx context.Context) ([]corpus.Document, error) {
	return s.cache.Documents(ctx, func() ([]corpus.Document, error) {
		return s.docs.ListAll(ctx)
	})
}

// Answers returns the answer listing, served through the listing cache.
func (s *Service) Answers(ctx context.Context) ([]corpus.Answer, error) {
	return s.cache.Answers(ctx, func() ([]corpus.Answer, error) {
		return s.answers.ListAll(ctx)
	})
}

func (s *Service) countIngest(outcome string) {
	if s.metrics != nil {
		s.metrics.IngestsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countAnswer(outcome string) {
	if s.metrics != nil {
		s.metrics.AnswersTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) updateCorpusGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if n, err := s.docs.Count(ctx); err == nil {
		s.metrics.CorpusDocuments.Set(float64(n))
	}
}
