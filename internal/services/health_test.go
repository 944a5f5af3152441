package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sliqpay/backend/internal/cache"
)

func TestHealthHandler(t *testing.T) {
	handler := HealthHandler(cache.NewMemoryStore())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status   string            `json:"status"`
		Ts       string            `json:"ts"`
		Services map[string]string `json:"services"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Ts)
	assert.Equal(t, "up", resp.Services["cache"])
}
