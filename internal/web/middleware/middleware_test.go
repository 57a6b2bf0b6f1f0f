package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agromonitor/auth"

	"github.com/gin-gonic/gin"
)

func newRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewMiddlewareManager(auth.NewAuthModule(secret))

	r := gin.New()
	r.Use(m.Recovery(), m.RequestLogger())
	r.GET("/private", m.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString("user_id")})
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestRequireAuth(t *testing.T) {
	r := newRouter("s3cret")
	token, _ := auth.NewAuthModule("s3cret").GenerateJWT("u1", time.Hour)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestRequireAuthDisabled(t *testing.T) {
	r := newRouter("")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected open access without secret, got %d", w.Code)
	}
}

func TestRecovery(t *testing.T) {
	r := newRouter("")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
