// Package handler implements the HTTP surface: the question form, the
// question endpoint, and the document/answer listings. Browser clients get
// rendered HTML; everything else gets JSON.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/askcorpus/askcorpus/internal/service"
	apperrors "github.com/askcorpus/askcorpus/pkg/errors"
	"github.com/askcorpus/askcorpus/pkg/logger"
)

// questionRequest is the JSON body accepted by POST /questions. Form-encoded
// bodies with the same field names are accepted too.
type questionRequest struct {
	URL      string `json:"url"`
	Question string `json:"question"`
}

type documentView struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type answerView struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Context  string `json:"context"`
}

// Handler serves the web surface over the repository service.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

// New creates a Handler.
func New(svc *service.Service) *Handler {
	return &Handler{
		svc:    svc,
		logger: slog.Default().With("component", "handler"),
	}
}

// Register attaches all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Landing)
	mux.HandleFunc("POST /questions", h.AskQuestion)
	mux.HandleFunc("GET /documents", h.Documents)
	mux.HandleFunc("GET /answers", h.Answers)
}

// Landing renders the question form.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "form.html", map[string]any{"Title": "Ask a question!"})
}

// AskQuestion drives the question state machine. url is optional, question
// is required. Returns 201 with the answer, or 400 when no question is given
// or the corpus is empty with no URL.
func (h *Handler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := decodeQuestionRequest(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Ask(ctx, req.URL, req.Question)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("question failed", "error", err, "status_code", status)
		h.writeError(w, r, status, userMessage(err))
		return
	}

	log.Info("question answered", "question", result.Question)
	if wantsHTML(r) {
		h.render(w, http.StatusCreated, "answer.html", map[string]any{
			"Title":    "Answer!",
			"Question": result.Question,
			"Answer":   result.Answer,
			"Context":  result.Context,
		})
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// Documents returns the corpus listing projected to title and content.
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Documents(r.Context())
	if err != nil {
		h.writeError(w, r, apperrors.HTTPStatusCode(err), "failed to list documents")
		return
	}
	views := make([]documentView, len(docs))
	for i, doc := range docs {
		views[i] = documentView{Title: doc.Title, Content: doc.Content}
	}
	if wantsHTML(r) {
		h.render(w, http.StatusOK, "documents.html", map[string]any{
			"Title":     "Documents!",
			"Documents": views,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

// Answers returns every recorded answer.
func (h *Handler) Answers(w http.ResponseWriter, r *http.Request) {
	answers, err := h.svc.Answers(r.Context())
	if err != nil {
		h.writeError(w, r, apperrors.HTTPStatusCode(err), "failed to list answers")
		return
	}
	views := make([]answerView, len(answers))
	for i, ans := range answers {
		views[i] = answerView{Question: ans.Question, Answer: ans.Answer, Context: ans.Context}
	}
	if wantsHTML(r) {
		h.render(w, http.StatusOK, "answers.html", map[string]any{
			"Title":   "Answers!",
			"Answers": views,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

func decodeQuestionRequest(r *http.Request) (*questionRequest, error) {
	var req questionRequest
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	req.URL = r.PostFormValue("url")
	req.Question = r.PostFormValue("question")
	return &req, nil
}

// wantsHTML reports whether the client asked for a rendered page.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// userMessage maps an error to the message shown to the client.
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "request failed"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if wantsHTML(r) {
		h.render(w, status, "error.html", map[string]any{
			"Title": "Error!",
			"Error": message,
		})
		return
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}

// render writes an HTML template; corpus types are small enough that
// templates take plain maps.
func (h *Handler) render(w http.ResponseWriter, status int, name string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("failed to render template", "template", name, "error", err)
	}
}
