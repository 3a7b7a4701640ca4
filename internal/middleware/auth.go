package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const devUserID = "00000000-0000-0000-0000-000000000001"

// Claims represents the JWT claims of a console user
type Claims struct {
	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// DevelopmentAuthMiddleware is a simple auth middleware for development
func DevelopmentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = devUserID
		}
		setUser(c, userID)
		c.Next()
	}
}

// JWTAuthMiddleware validates HMAC signed bearer tokens. Used when the service
// runs outside the mesh and IstioAuth has no claims to read.
func JWTAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "MISSING_TOKEN", "Authorization header is required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			abortUnauthorized(c, "INVALID_TOKEN_FORMAT", "Authorization header must be in format: Bearer <token>")
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid || claims.UserID == "" {
			abortUnauthorized(c, "INVALID_CLAIMS", "Invalid token claims")
			return
		}

		setUser(c, claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("username", claims.Name)
		c.Set("user_roles", claims.Roles)
		if claims.TenantID != "" {
			c.Set("tenant_id", claims.TenantID)
		}
		c.Next()
	}
}

// setUser sets both camelCase and snake_case keys for the RBAC middleware
func setUser(c *gin.Context, userID string) {
	c.Set("userId", userID)
	c.Set("user_id", userID)
	c.Set("staff_id", userID)
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
	c.Abort()
}
