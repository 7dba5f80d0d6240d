package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/askcorpus/askcorpus/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAppError_UnwrapsToSentinel(t *testing.T) {
	t.Parallel()

	err := apperrors.New(apperrors.ErrFetchFailed, http.StatusBadGateway, "parser returned 500")
	assert.ErrorIs(t, err, apperrors.ErrFetchFailed)
	assert.Equal(t, http.StatusBadGateway, err.StatusCode)
	assert.Contains(t, err.Error(), "parser returned 500")
}

func TestHTTPStatusCode_AppErrorWins(t *testing.T) {
	t.Parallel()

	err := apperrors.New(apperrors.ErrNoDocuments, http.StatusBadRequest, "no documents")
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(err))
}

func TestHTTPStatusCode_WrappedSentinels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		sentinel error
		want     int
	}{
		{apperrors.ErrBadRequest, http.StatusBadRequest},
		{apperrors.ErrNoDocuments, http.StatusBadRequest},
		{apperrors.ErrDocumentExists, http.StatusConflict},
		{apperrors.ErrDocumentNotFound, http.StatusNotFound},
		{apperrors.ErrFetchFailed, http.StatusBadGateway},
		{apperrors.ErrIndexingFailed, http.StatusBadGateway},
		{apperrors.ErrEngineRejected, http.StatusBadGateway},
		{apperrors.ErrEngineUnavailable, http.StatusServiceUnavailable},
		{apperrors.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("op failed: %w", tc.sentinel)
		assert.Equal(t, tc.want, apperrors.HTTPStatusCode(wrapped), "sentinel %v", tc.sentinel)
	}
}
