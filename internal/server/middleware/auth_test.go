package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func authedMux(secret string) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Auth(secret)(next)
}

func TestAuthBearer(t *testing.T) {
	h := authedMux("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/api/chainhook", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthRejectsWrongToken(t *testing.T) {
	h := authedMux("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/api/chainhook", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/chainhook", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "missing token rejected before any parsing")
}

func TestAuthDisabledWhenEmpty(t *testing.T) {
	h := authedMux("")

	req := httptest.NewRequest(http.MethodPost, "/api/chainhook", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthAcceptsAPIKeyHeader(t *testing.T) {
	h := authedMux("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/api/chainhook", nil)
	req.Header.Set("X-API-Key", "s3cret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
