package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadRequest        = errors.New("a question is required")
	ErrNoDocuments       = errors.New("no documents in corpus")
	ErrDocumentExists    = errors.New("document already exists")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrFetchFailed       = errors.New("content fetch failed")
	ErrIndexingFailed    = errors.New("document indexing failed")
	ErrEngineUnavailable = errors.New("qa engine unavailable")
	ErrEngineRejected    = errors.New("qa engine rejected request")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInternal          = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrNoDocuments):
		return http.StatusBadRequest
	case errors.Is(err, ErrDocumentExists):
		return http.StatusConflict
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrFetchFailed), errors.Is(err, ErrIndexingFailed), errors.Is(err, ErrEngineRejected):
		return http.StatusBadGateway
	case errors.Is(err, ErrEngineUnavailable), errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
