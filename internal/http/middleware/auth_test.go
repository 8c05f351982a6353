package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursegen-backend/internal/pkg/ctxutil"
	"github.com/yungbote/coursegen-backend/internal/platform/logger"
)

const testSecret = "test-secret"

func mustSign(t *testing.T, secret, user, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := SignToken(secret, user, role, ttl)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return tok
}

func TestAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(logger.Nop(), testSecret)

	r := gin.New()
	r.Use(am.RequireAuth())
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.UserID(c.Request.Context()))
	})
	admin := r.Group("/admin", am.RequireRole(ctxutil.RoleAdmin))
	admin.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	adminTok := mustSign(t, testSecret, "admin-1", ctxutil.RoleAdmin, time.Hour)
	learnerTok := mustSign(t, testSecret, "learner-1", "learner", time.Hour)

	tests := []struct {
		name     string
		path     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "bearer header", path: "/me", header: "Bearer " + learnerTok, wantCode: http.StatusOK, wantBody: "learner-1"},
		{name: "query token", path: "/me?token=" + learnerTok, wantCode: http.StatusOK, wantBody: "learner-1"},
		{name: "missing token", path: "/me", wantCode: http.StatusUnauthorized},
		{name: "wrong secret", path: "/me", header: "Bearer " + mustSign(t, "other", "x", "", time.Hour), wantCode: http.StatusUnauthorized},
		{name: "expired", path: "/me", header: "Bearer " + mustSign(t, testSecret, "x", "", -time.Minute), wantCode: http.StatusUnauthorized},
		{name: "admin route as learner", path: "/admin/ping", header: "Bearer " + learnerTok, wantCode: http.StatusUnauthorized},
		{name: "admin route as admin", path: "/admin/ping", header: "Bearer " + adminTok, wantCode: http.StatusOK, wantBody: "pong"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.wantCode {
				t.Fatalf("status: want=%d got=%d body=%s", tc.wantCode, rec.Code, rec.Body.String())
			}
			if tc.wantBody != "" && rec.Body.String() != tc.wantBody {
				t.Fatalf("body: want=%q got=%q", tc.wantBody, rec.Body.String())
			}
			if rec.Code == http.StatusUnauthorized {
				var body struct {
					Detail string `json:"detail"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Detail == "" {
					t.Fatalf("error body: %q", rec.Body.String())
				}
			}
		})
	}
}
