package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodops/orderflow/common/logger"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	h := NewHTTPHandler(nil, nil, nil, logger.NewTestLogger())
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func TestHTTPHandler_MissingTenantHeader(t *testing.T) {
	mux := newTestMux(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/orders"},
		{http.MethodGet, "/orders/order-1"},
		{http.MethodPut, "/orders/order-1/status"},
		{http.MethodGet, "/orders/order-1/history"},
		{http.MethodPost, "/checkpoints/chef_confirmation"},
		{http.MethodGet, "/inventory/pizza"},
		{http.MethodPost, "/inventory/adjust"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			req := httptest.NewRequest(p.method, p.path, strings.NewReader("{}"))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Error, "X-Tenant-Id")
			assert.Equal(t, "VALIDATION_ERROR", body.Code)
		})
	}
}

func TestHTTPHandler_MalformedBody(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader("{not json"))
	req.Header.Set("X-Tenant-Id", "t1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPHandler_HealthCheck(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
