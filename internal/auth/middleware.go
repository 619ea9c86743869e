package auth

import (
	"net/http"
	"strings"

	"github.com/connectapp/connect-backend/internal/logger"
	"github.com/gin-gonic/gin"
)

type contextKey string

// UserIDKey is the gin context key for the authenticated Firebase UID.
const UserIDKey contextKey = "user_id"

// FirebaseAuthMiddleware guards routes behind Firebase ID-token verification.
type FirebaseAuthMiddleware struct {
	validator TokenValidator
}

// NewFirebaseAuthMiddleware creates the middleware over a token validator.
func NewFirebaseAuthMiddleware(validator TokenValidator) *FirebaseAuthMiddleware {
	return &FirebaseAuthMiddleware{
		validator: validator,
	}
}

// RequireAuth validates the bearer token and attaches the Firebase UID to
// both the gin context and the request context.
func (f *FirebaseAuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must be a Bearer token"})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Bearer token is empty"})
			c.Abort()
			return
		}

		uid, err := f.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		ctx := logger.WithUserID(c.Request.Context(), uid)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(UserIDKey), uid)

		c.Next()
	}
}

// GetUserID extracts the authenticated Firebase UID from the gin context.
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(string(UserIDKey))
	if !exists {
		return "", false
	}

	uid, ok := userID.(string)
	return uid, ok
}
