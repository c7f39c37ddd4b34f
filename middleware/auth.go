package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates HS256 JWT tokens signed with secret
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		// Check Bearer prefix
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		// Parse token
		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid || secret == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// Get claims
		claims, ok := token.Claims.(*Claims)
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		// Set user info in context
		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("roles", claims.Roles)

		c.Next()
	}
}

// RequireRole checks if the token carries at least one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasAnyRole(c, roles...) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// HasAnyRole reports whether the authenticated caller has one of roles.
func HasAnyRole(c *gin.Context, roles ...string) bool {
	value, exists := c.Get("roles")
	if !exists {
		return false
	}
	held, _ := value.([]string)
	for _, have := range held {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// CurrentUserID returns the authenticated user id set by AuthMiddleware.
func CurrentUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get("userID")
	if !exists {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}
