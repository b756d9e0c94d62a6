package exports

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	localstore "kamiscan-backend/internal/shared/storage/object/local"
)

func setupRouter(t *testing.T) (*gin.Engine, *string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := NewHandler(newTestService(t, localstore.New(t.TempDir())))

	user := "acct-1"
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", user)
		c.Next()
	})
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router, &user
}

func TestExportRoundTripThroughRoutes(t *testing.T) {
	router, user := setupRouter(t)

	body, _ := json.Marshal(Request{Format: FormatMarkdown, Template: TemplateBusiness, Content: sampleContent()})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/export", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, result.URL, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on download, got %d", resp.Code)
	}
	if !strings.HasPrefix(resp.Header().Get("Content-Type"), "text/markdown") {
		t.Fatalf("unexpected content type %s", resp.Header().Get("Content-Type"))
	}
	if !strings.Contains(resp.Header().Get("Content-Disposition"), "quarterly-review.md") {
		t.Fatalf("unexpected disposition %s", resp.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(resp.Body.String(), "## Executive Summary") {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}

	*user = "acct-2"
	req = httptest.NewRequest(http.MethodGet, result.URL, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another owner, got %d", resp.Code)
	}
}

func TestExportRejectsBadRequests(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: "{"},
		{name: "unsupported format", body: `{"format":"pptx","content":{"title":"t","summary":"s"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/export", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.Code)
			}
		})
	}
}
