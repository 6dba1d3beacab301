package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStore(statusHandler(http.StatusOK)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
