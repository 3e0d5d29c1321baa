package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout-service/common/auth"
	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func setupRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", mw, func(c *gin.Context) {
		c.String(http.StatusOK, middleware.GetUserID(c))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	parser := auth.NewTokenParser(testSecret)
	valid := signToken(t, jwt.MapClaims{"user_id": "user-1", "typ": "access", "exp": time.Now().Add(time.Hour).Unix()})
	refresh := signToken(t, jwt.MapClaims{"sub": "user-1", "typ": "refresh", "exp": time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{name: "bearer token", headers: map[string]string{"Authorization": "Bearer " + valid}, wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "gateway header", headers: map[string]string{"X-User-ID": "user-2"}, wantStatus: http.StatusOK, wantBody: "user-2"},
		{name: "refresh token rejected", headers: map[string]string{"Authorization": "Bearer " + refresh}, wantStatus: http.StatusUnauthorized},
		{name: "garbage token", headers: map[string]string{"Authorization": "Bearer nope"}, wantStatus: http.StatusUnauthorized},
		{name: "anonymous", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(middleware.AuthMiddleware(parser))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestOptionalAuth_AllowsAnonymous(t *testing.T) {
	r := setupRouter(middleware.OptionalAuth(auth.NewTokenParser(testSecret)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestOptionalAuth_RejectsBadToken(t *testing.T) {
	r := setupRouter(middleware.OptionalAuth(auth.NewTokenParser(testSecret)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
