package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"candle-shop/auth"
	"candle-shop/middleware"
	"candle-shop/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var testTokens = auth.NewTokenManager("test-secret", time.Hour)

var (
	customer = models.User{ID: 1, Name: "Asha", Email: "asha@example.com", Role: models.RoleUser}
	admin    = models.User{ID: 99, Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin}
)

func newRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler(zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))))
	return router
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	token, err := testTokens.Issue(user)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

func doRequest(router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Page    int             `json:"page"`
	Pages   int             `json:"pages"`
	Total   int             `json:"total"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return env
}
