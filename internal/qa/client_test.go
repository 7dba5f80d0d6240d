package qa_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/askcorpus/askcorpus/internal/qa"
	"github.com/askcorpus/askcorpus/pkg/config"
	apperrors "github.com/askcorpus/askcorpus/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(endpoint string) *qa.Client {
	return qa.NewClient(config.EngineConfig{
		Endpoint:  endpoint,
		UserToken: "token",
	}, nil)
}

func TestAddDocument_ReturnsAssignedID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/documents", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Board news", req["title"])
		assert.Equal(t, true, req["replace"])

		w.Write([]byte(`{"documentId": "doc-42"}`))
	}))
	defer srv.Close()

	id, err := newClient(srv.URL).AddDocument(context.Background(), "Board news", "text", true)
	require.NoError(t, err)
	assert.Equal(t, "doc-42", id)
}

func TestAddDocument_MissingIDIsIndexingFailed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).AddDocument(context.Background(), "t", "x", true)
	assert.ErrorIs(t, err, apperrors.ErrIndexingFailed)
}

func TestAnswer_ReturnsRankedSpans(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/answer", r.URL.Path)

		var req struct {
			Question    string   `json:"question"`
			UserToken   string   `json:"userToken"`
			DocumentIDs []string `json:"documentIds"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Who leads?", req.Question)
		assert.Equal(t, "token", req.UserToken)
		assert.Equal(t, []string{"doc-1", "doc-2"}, req.DocumentIDs)

		w.Write([]byte(`[
			{"answerText": "The chairman", "answerContext": "The board is represented by the chairman", "score": 0.9},
			{"answerText": "The board", "answerContext": "...", "score": 0.4}
		]`))
	}))
	defer srv.Close()

	spans, err := newClient(srv.URL).Answer(context.Background(), "Who leads?", []string{"doc-1", "doc-2"})
	require.NoError(t, err)
	require.Len(t, spans, 2)
	assert.Equal(t, "The chairman", spans[0].AnswerText)
	assert.Equal(t, "The board is represented by the chairman", spans[0].AnswerContext)
}

func TestAnswer_UnauthorizedIsEngineRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Answer(context.Background(), "q", nil)
	assert.ErrorIs(t, err, apperrors.ErrEngineRejected)
}

func TestAnswer_ServerErrorIsEngineUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).Answer(context.Background(), "q", nil)
	assert.ErrorIs(t, err, apperrors.ErrEngineUnavailable)
}

func TestAnswer_UnreachableEngineIsEngineUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	_, err := newClient(srv.URL).Answer(context.Background(), "q", nil)
	assert.ErrorIs(t, err, apperrors.ErrEngineUnavailable)
}

func TestAnswer_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := qa.NewClient(config.EngineConfig{
		Endpoint:         srv.URL,
		UserToken:        "token",
		FailureThreshold: 2,
	}, nil)

	ctx := context.Background()
	_, err := client.Answer(ctx, "q", nil)
	require.ErrorIs(t, err, apperrors.ErrEngineUnavailable)
	_, err = client.Answer(ctx, "q", nil)
	require.ErrorIs(t, err, apperrors.ErrEngineUnavailable)

	// Third call fails fast without reaching the engine.
	_, err = client.Answer(ctx, "q", nil)
	assert.ErrorIs(t, err, apperrors.ErrEngineUnavailable)
}
