package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/askcorpus/askcorpus/internal/corpus"
	"github.com/askcorpus/askcorpus/internal/corpus/memory"
	"github.com/askcorpus/askcorpus/internal/extract"
	"github.com/askcorpus/askcorpus/internal/handler"
	"github.com/askcorpus/askcorpus/internal/qa"
	"github.com/askcorpus/askcorpus/internal/service"
	"github.com/askcorpus/askcorpus/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine is an httptest stand-in for the external QA engine. It assigns
// sequential document ids and records the id set of every answer call.
type fakeEngine struct {
	mu          sync.Mutex
	nextDocID   int
	answerCalls [][]string
}

func (e *fakeEngine) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents", func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.nextDocID++
		id := fmt.Sprintf("doc-%d", e.nextDocID)
		e.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"documentId": id})
	})
	mux.HandleFunc("POST /api/answer", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DocumentIDs []string `json:"documentIds"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		e.mu.Lock()
		e.answerCalls = append(e.answerCalls, req.DocumentIDs)
		e.mu.Unlock()
		json.NewEncoder(w).Encode([]map[string]any{
			{"answerText": "The chairman", "answerContext": "The board is represented by the chairman", "score": 0.9},
		})
	})
	return mux
}

func (e *fakeEngine) lastAnswerCall() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.answerCalls) == 0 {
		return nil
	}
	return e.answerCalls[len(e.answerCalls)-1]
}

// newTestServer wires the full stack over in-memory stores and fake external
// services.
func newTestServer(t *testing.T) (*httptest.Server, *fakeEngine) {
	t.Helper()

	parser := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		json.NewEncoder(w).Encode(map[string]string{
			"title":   "Title for " + r.PostFormValue("url"),
			"content": "<div><p>The board is represented by the chairman.</p><p>Second paragraph.</p></div>",
		})
	}))
	t.Cleanup(parser.Close)

	engine := &fakeEngine{}
	engineSrv := httptest.NewServer(engine.handler())
	t.Cleanup(engineSrv.Close)

	fetcher := extract.NewClient(config.ParserConfig{Endpoint: parser.URL}, nil)
	qaClient := qa.NewClient(config.EngineConfig{Endpoint: engineSrv.URL, UserToken: "token"}, nil)

	docs := corpus.NewRepository(memory.NewDocumentStore(), fetcher, qaClient)
	answers := corpus.NewAnswerCache(memory.NewAnswerStore())
	svc := service.New(docs, answers, qaClient, nil, nil, nil)

	mux := http.NewServeMux()
	handler.New(svc).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, engine
}

func postQuestion(t *testing.T, srv *httptest.Server, pageURL, question string) *http.Response {
	t.Helper()
	form := url.Values{"url": {pageURL}, "question": {question}}
	resp, err := http.Post(srv.URL+"/questions", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestEndToEnd_AskIngestAndDedup(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	// First question on an empty repository ingests the page.
	resp := postQuestion(t, srv, "http://example.com/a", "Who leads?")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Context  string `json:"context"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "Who leads?", result.Question)
	assert.Equal(t, "The chairman", result.Answer)
	assert.Equal(t, "The board is represented by the chairman", result.Context)

	var docs []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	getJSON(t, srv, "/documents", &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, "Title for http://example.com/a", docs[0].Title)
	assert.Equal(t, "The board is represented by the chairman.\nSecond paragraph.", docs[0].Content)

	var answers []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Context  string `json:"context"`
	}
	getJSON(t, srv, "/answers", &answers)
	require.Len(t, answers, 1)
	assert.Equal(t, "Who leads?", answers[0].Question)

	// Second question on the same URL: dedup, but a new answer.
	resp2 := postQuestion(t, srv, "http://example.com/a", "Other?")
	resp2.Body.Close()
	require.Equal(t, http.StatusCreated, resp2.StatusCode)

	getJSON(t, srv, "/documents", &docs)
	assert.Len(t, docs, 1, "re-asking the same URL must not create a second document")
	getJSON(t, srv, "/answers", &answers)
	assert.Len(t, answers, 2)
}

func TestEndToEnd_CorpusCompleteness(t *testing.T) {
	t.Parallel()

	srv, engine := newTestServer(t)

	postQuestion(t, srv, "http://example.com/u1", "Who leads?").Body.Close()
	postQuestion(t, srv, "http://example.com/u2", "Who leads?").Body.Close()
	postQuestion(t, srv, "", "Who leads everywhere?").Body.Close()

	assert.ElementsMatch(t, []string{"doc-1", "doc-2"}, engine.lastAnswerCall())
}

func TestPostQuestions_MissingQuestionIsBadRequest(t *testing.T) {
	t.Parallel()

	srv, engine := newTestServer(t)

	resp := postQuestion(t, srv, "", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, engine.lastAnswerCall())
}

func TestPostQuestions_EmptyCorpusIsBadRequest(t *testing.T) {
	t.Parallel()

	srv, engine := newTestServer(t)

	resp := postQuestion(t, srv, "", "Who leads?")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "no current documents")
	assert.Nil(t, engine.lastAnswerCall(), "the guard must short-circuit before any engine call")
}

func TestPostQuestions_AcceptsJSONBody(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	body := strings.NewReader(`{"url": "http://example.com/a", "question": "Who leads?"}`)
	resp, err := http.Post(srv.URL+"/questions", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestLanding_RendersForm(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestPostQuestions_BrowserClientGetsHTML(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	form := url.Values{"url": {"http://example.com/a"}, "question": {"Who leads?"}}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/questions", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}
