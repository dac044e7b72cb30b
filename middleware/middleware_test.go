package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentfiles/utils"
)

const testSecret = "middleware-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func scopedRouter(required bool) *gin.Engine {
	r := gin.New()
	g := r.Group("/api/teacher/:id", AuthMiddleware(testSecret, required), TeacherScope("id"))
	g.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"teacherId": TeacherID(c)})
	})
	return r
}

func bearer(t *testing.T, teacherID uint, secret string) string {
	t.Helper()
	token, err := utils.GenerateJWTTokenWithSecret(teacherID, "t@school.test", "T", secret, "test", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestTeacherScopeWithAuthRequired(t *testing.T) {
	r := scopedRouter(true)

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{"no token", "/api/teacher/1", "", http.StatusUnauthorized},
		{"bad signature", "/api/teacher/1", bearer(t, 1, "other-secret"), http.StatusUnauthorized},
		{"other teacher", "/api/teacher/2", bearer(t, 1, testSecret), http.StatusForbidden},
		{"own teacher", "/api/teacher/1", bearer(t, 1, testSecret), http.StatusOK},
		{"malformed id", "/api/teacher/abc", bearer(t, 1, testSecret), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestTeacherScopeWithAuthOptional(t *testing.T) {
	r := scopedRouter(false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/teacher/5", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"teacherId":5}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/teacher/5", nil)
	req.Header.Set("Authorization", bearer(t, 4, testSecret))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(NewIPRateLimiter(0.001, 2)), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "buckets are per client")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://app.test"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://app.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.test", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
