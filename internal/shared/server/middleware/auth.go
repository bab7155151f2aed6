package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docqr-backend/internal/shared/auth"
	"docqr-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
	userNameKey  = "userName"
	userRoleKey  = "userRole"

	// AuthCookie carries the session token for browser clients.
	AuthCookie = "authToken"
)

// Auth requires a valid JWT and stores identity in context.
// The token is read from the Authorization header, the auth cookie, or the
// access_token query parameter (websocket clients cannot set headers).
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		claims, present, err := authenticate(c)
		if !present || err != nil {
			respond.Unauthorized(c)
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches identity when a valid token is present and lets the
// request through anonymously otherwise. A present but invalid token is rejected.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, present, err := authenticate(c)
		if present && err != nil {
			respond.Unauthorized(c)
			return
		}
		if present {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			respond.Error(c, http.StatusForbidden, respond.CodeForbidden, "admin role required", nil)
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context) (auth.Claims, bool, error) {
	token := tokenFromRequest(c)
	if token == "" {
		return auth.Claims{}, false, nil
	}
	claims, err := auth.VerifyJWT(token)
	return claims, true, err
}

func tokenFromRequest(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return header
		}
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	return strings.TrimSpace(c.Query("access_token"))
}

func setIdentity(c *gin.Context, claims auth.Claims) {
	c.Set(userIDKey, claims.Sub)
	if claims.Email != "" {
		c.Set(userEmailKey, claims.Email)
	}
	if claims.Name != "" {
		c.Set(userNameKey, claims.Name)
	}
	if claims.Role != "" {
		c.Set(userRoleKey, strings.ToLower(claims.Role))
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	return contextString(c, userIDKey)
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	return contextString(c, userEmailKey)
}

// UserNameFromContext fetches the user name set by the auth middleware.
func UserNameFromContext(c *gin.Context) string {
	return contextString(c, userNameKey)
}

// UserRoleFromContext fetches the role claim set by the auth middleware.
func UserRoleFromContext(c *gin.Context) string {
	return contextString(c, userRoleKey)
}

// IsAdmin reports whether the authenticated caller has the admin role.
func IsAdmin(c *gin.Context) bool {
	return UserRoleFromContext(c) == auth.RoleAdmin
}

func contextString(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
