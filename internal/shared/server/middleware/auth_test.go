package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"docqr-backend/internal/shared/auth"
)

func signedToken(t *testing.T, claims auth.Claims) string {
	t.Helper()
	t.Setenv("JWT_SECRET", "middleware-test")
	token, err := auth.SignJWT(claims)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return token
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth())
	router.OPTIONS("/api/documents/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/documents/123", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth())
	router.GET("/api/documents", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthAcceptsBearerCookieAndQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token := signedToken(t, auth.Claims{Sub: "user-7", Role: "Admin"})

	router := gin.New()
	router.Use(Auth())
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserIDFromContext(c), "admin": IsAdmin(c)})
	})

	cases := map[string]func(*http.Request){
		"bearer": func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
		"cookie": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AuthCookie, Value: token}) },
		"query": func(r *http.Request) {
			q := r.URL.Query()
			q.Set("access_token", token)
			r.URL.RawQuery = q.Encode()
		},
	}
	for name, apply := range cases {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		apply(req)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", name, resp.Code)
		}
		if body := resp.Body.String(); body != `{"admin":true,"id":"user-7"}` {
			t.Fatalf("%s: unexpected body %s", name, body)
		}
	}
}

func TestOptionalAuthAllowsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(OptionalAuth())
	router.GET("/api/shared/:token", func(c *gin.Context) {
		c.String(http.StatusOK, "user=%s", UserIDFromContext(c))
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/shared/abc", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "user=" {
		t.Fatalf("expected anonymous pass-through, got %d %q", resp.Code, resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/shared/abc", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token := signedToken(t, auth.Claims{Sub: "user-1"})

	router := gin.New()
	router.Use(Auth(), RequireAdmin())
	router.GET("/api/admin/documents", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.Code)
	}
}
