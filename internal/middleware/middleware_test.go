package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"tenant": GetTenantID(c),
			"user":   c.GetString("user_id"),
			"locale": GetLocale(c),
		})
	})
	r.GET("/test", handlers...)
	return r
}

func TestTenantMiddleware(t *testing.T) {
	r := newRouter(TenantMiddleware())

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{"missing", nil, http.StatusUnauthorized, "TENANT_REQUIRED"},
		{"blank", map[string]string{"X-Tenant-ID": "  "}, http.StatusUnauthorized, "TENANT_REQUIRED"},
		{"tenant header", map[string]string{"X-Tenant-ID": "tenant-1"}, http.StatusOK, `"tenant":"tenant-1"`},
		{"vendor header", map[string]string{"X-Vendor-ID": "vendor_7"}, http.StatusOK, `"tenant":"vendor_7"`},
		{"tenant header wins", map[string]string{"X-Tenant-ID": "tenant-1", "X-Vendor-ID": "vendor_7"}, http.StatusOK, `"tenant":"tenant-1"`},
		{"glob characters", map[string]string{"X-Tenant-ID": "tenant-*"}, http.StatusBadRequest, "INVALID_TENANT"},
		{"key separator", map[string]string{"X-Tenant-ID": "a:b"}, http.StatusBadRequest, "INVALID_TENANT"},
		{"too long", map[string]string{"X-Tenant-ID": strings.Repeat("t", maxTenantIDLength+1)}, http.StatusBadRequest, "INVALID_TENANT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := newRouter(JWTAuthMiddleware("secret"), TenantMiddleware())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing", "", http.StatusUnauthorized, "MISSING_TOKEN"},
		{"bad format", "Token abc", http.StatusUnauthorized, "INVALID_TOKEN_FORMAT"},
		{"bad signature", "Bearer " + signToken(t, "other", Claims{UserID: "u1"}), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"expired", "Bearer " + signToken(t, "secret", Claims{
			UserID:           "u1",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
		}), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"no user", "Bearer " + signToken(t, "secret", Claims{TenantID: "tenant-1"}), http.StatusUnauthorized, "INVALID_CLAIMS"},
		{"valid", "Bearer " + signToken(t, "secret", Claims{UserID: "u1", TenantID: "tenant-9"}), http.StatusOK, `"tenant":"tenant-9"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestDevelopmentAuthMiddleware(t *testing.T) {
	r := newRouter(DevelopmentAuthMiddleware())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Contains(t, w.Body.String(), devUserID)
}

func TestTenantRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewTenantRateLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	// buckets are per tenant
	assert.True(t, l.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(time.Hour)
	assert.True(t, l.Allow("c"))
	assert.Len(t, l.limiters, 1)
}

func TestTenantRateLimiter_Disabled(t *testing.T) {
	l := NewTenantRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("a"))
	}
}

func TestTenantRateLimiter_Middleware(t *testing.T) {
	l := NewTenantRateLimiter(1, 1)
	r := newRouter(TenantMiddleware(), l.Middleware())

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Tenant-ID", "tenant-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	assert.Equal(t, http.StatusOK, do().Code)
	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestMatchLocale(t *testing.T) {
	tags := []language.Tag{language.English, language.German, language.French}
	matcher := language.NewMatcher(tags)

	tests := []struct {
		name   string
		query  string
		header string
		want   string
	}{
		{"default", "", "", "en"},
		{"header", "", "de-AT,de;q=0.9,en;q=0.5", "de"},
		{"query wins", "fr", "de", "fr"},
		{"unsupported", "", "ja", "en"},
		{"garbage", "%%", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchLocale(matcher, tags, tt.query, tt.header))
		})
	}
}

func TestLocaleMiddleware(t *testing.T) {
	r := newRouter(LocaleMiddleware([]string{"en", "de"}))
	req := httptest.NewRequest(http.MethodGet, "/test?locale=de-CH", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"locale":"de"`)
}
