package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type adminEmails []string

func (a adminEmails) IsAdminEmail(email string) bool {
	for _, admin := range a {
		if strings.EqualFold(admin, email) {
			return true
		}
	}
	return false
}

func setupRouter(t *testing.T, userID, email string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	handler := NewHandler(f.svc, adminEmails{"admin@kamiscan.dev"})

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("userId", userID)
			c.Set("userEmail", email)
		}
		c.Next()
	})
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func getDashboard(t *testing.T, router *gin.Engine, query string) (int, Dashboard) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics"+query, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	var body Dashboard
	if resp.Code == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.Code, body
}

func TestAnalyticsScopedToCaller(t *testing.T) {
	router := setupRouter(t, "acct-a", "a@example.com")

	code, body := getDashboard(t, router, "?range=QUARTER")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Scope != "account" || body.Range != RangeQuarter {
		t.Fatalf("unexpected scope/range: %s/%s", body.Scope, body.Range)
	}
	// r1, r2 and the 40-day-old r3 fall inside a quarter; acct-b's r4 does not belong to the caller.
	if body.TotalSummaries != 3 {
		t.Fatalf("expected 3 summaries, got %d", body.TotalSummaries)
	}
}

func TestAnalyticsAdminSeesEverything(t *testing.T) {
	router := setupRouter(t, "acct-admin", "Admin@Kamiscan.dev")

	code, body := getDashboard(t, router, "?range=year")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Scope != "global" || body.TotalSummaries != 4 {
		t.Fatalf("expected global view, got %s with %d", body.Scope, body.TotalSummaries)
	}
}

func TestAnalyticsRequiresUser(t *testing.T) {
	router := setupRouter(t, "", "")

	if code, _ := getDashboard(t, router, ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
