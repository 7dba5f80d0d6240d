// Package qa wraps the external question-answering engine. The engine
// registers documents (with replace semantics, so re-registration is
// idempotent) and answers questions scoped to a set of document identifiers.
package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/askcorpus/askcorpus/pkg/config"
	apperrors "github.com/askcorpus/askcorpus/pkg/errors"
	"github.com/askcorpus/askcorpus/pkg/metrics"
	"github.com/askcorpus/askcorpus/pkg/resilience"
)

// Span is a ranked answer returned by the engine, best first.
type Span struct {
	AnswerText    string  `json:"answerText"`
	AnswerContext string  `json:"answerContext"`
	Score         float64 `json:"score"`
}

type addDocumentRequest struct {
	Title   string `json:"title"`
	Text    string `json:"text"`
	Replace bool   `json:"replace"`
}

type addDocumentResponse struct {
	DocumentID string `json:"documentId"`
}

type answerRequest struct {
	Question    string   `json:"question"`
	UserToken   string   `json:"userToken"`
	DocumentIDs []string `json:"documentIds"`
}

// Client calls the QA engine over HTTP. A circuit breaker fails answer and
// registration calls fast while the engine is down.
type Client struct {
	endpoint  string
	userToken string
	http      *http.Client
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient creates a Client for the configured engine. metrics may be nil.
func NewClient(cfg config.EngineConfig, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		userToken: cfg.UserToken,
		http:      &http.Client{Timeout: timeout},
		breaker: resilience.NewCircuitBreaker("qa-engine", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
		}),
		metrics: m,
		logger:  slog.Default().With("component", "qa-client"),
	}
}

// AddDocument registers a document with the engine and returns the assigned
// identifier. With replace=true the call is idempotent: re-registering the
// same logical document does not error.
func (c *Client) AddDocument(ctx context.Context, title, text string, replace bool) (string, error) {
	var docID string
	err := c.breaker.Execute(func() error {
		start := time.Now()
		defer c.observe("add_document", start)

		status, body, err := c.post(ctx, "/api/documents", addDocumentRequest{
			Title:   title,
			Text:    text,
			Replace: replace,
		})
		if err != nil {
			return apperrors.Newf(apperrors.ErrIndexingFailed, http.StatusBadGateway, "engine unreachable: %v", err)
		}
		if status != http.StatusOK && status != http.StatusCreated {
			return apperrors.Newf(apperrors.ErrIndexingFailed, http.StatusBadGateway, "engine returned status %d", status)
		}
		var resp addDocumentResponse
		if err := json.Unmarshal(body, &resp); err != nil || resp.DocumentID == "" {
			return apperrors.New(apperrors.ErrIndexingFailed, http.StatusBadGateway, "engine response missing document id")
		}
		docID = resp.DocumentID
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", apperrors.Newf(apperrors.ErrIndexingFailed, http.StatusServiceUnavailable, "engine circuit open: %v", err)
	}
	return docID, err
}

// Answer asks the engine a question scoped to documentIDs and returns the
// ranked answer spans, best first. The entire current document-id set is
// passed on every call; there is no per-session scoping.
func (c *Client) Answer(ctx context.Context, question string, documentIDs []string) ([]Span, error) {
	var spans []Span
	err := c.breaker.Execute(func() error {
		start := time.Now()
		defer c.observe("answer", start)

		status, body, err := c.post(ctx, "/api/answer", answerRequest{
			Question:    question,
			UserToken:   c.userToken,
			DocumentIDs: documentIDs,
		})
		if err != nil {
			return apperrors.Newf(apperrors.ErrEngineUnavailable, http.StatusServiceUnavailable, "engine unreachable: %v", err)
		}
		switch {
		case status == http.StatusOK:
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return apperrors.New(apperrors.ErrEngineRejected, http.StatusBadGateway, "engine rejected the service token")
		case status == http.StatusUnprocessableEntity:
			return apperrors.New(apperrors.ErrEngineRejected, http.StatusBadGateway, "engine rejected the request")
		case status >= 500:
			return apperrors.Newf(apperrors.ErrEngineUnavailable, http.StatusServiceUnavailable, "engine returned status %d", status)
		default:
			return apperrors.Newf(apperrors.ErrEngineRejected, http.StatusBadGateway, "engine returned status %d", status)
		}
		if err := json.Unmarshal(body, &spans); err != nil {
			return apperrors.Newf(apperrors.ErrEngineUnavailable, http.StatusBadGateway, "decoding engine response: %v", err)
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, apperrors.Newf(apperrors.ErrEngineUnavailable, http.StatusServiceUnavailable, "engine circuit open: %v", err)
	}
	if err != nil {
		return nil, err
	}
	c.logger.Debug("engine answered", "question", question, "spans", len(spans), "corpus_size", len(documentIDs))
	return spans, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, buf.Bytes(), nil
}

func (c *Client) observe(op string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ExternalCallDuration.WithLabelValues("engine", op).Observe(time.Since(start).Seconds())
}
