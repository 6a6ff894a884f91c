package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by Authenticate.
const (
	ContextUserID      = "userID"
	ContextUserEmail   = "userEmail"
	ContextDisplayName = "userDisplayName"
	ContextIsAdmin     = "userIsAdmin"
)

// TokenVerifier verifies Firebase ID tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthMiddleware provides Gin middleware for Firebase token authentication.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if verifier == nil {
		panic("AuthMiddleware requires a non-nil TokenVerifier")
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// Authenticate verifies the bearer token when one is present and stores the
// caller's claims in the Gin context. Requests without an Authorization header
// pass through anonymously; the operation decides whether that is allowed.
// A malformed or invalid token is always rejected.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// Anonymous request: no claims are set.
			c.Next()
			return
		}

		// Expect "Bearer <token>", scheme matched case-insensitively.
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errorResponse("unauthenticated", "Authorization header format must be 'Bearer {token}'"))
			return
		}

		// Verifies signature, expiry and audience against the Firebase project.
		token, err := m.verifier.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			m.logger.Warn("Error verifying Firebase ID token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errorResponse("unauthenticated", "Invalid or expired authentication token"))
			return
		}

		// Expose the claims the handlers turn into a core.Caller.
		c.Set(ContextUserID, token.UID)
		if email, ok := token.Claims["email"].(string); ok {
			c.Set(ContextUserEmail, email)
		}
		if name, ok := token.Claims["name"].(string); ok {
			c.Set(ContextDisplayName, name)
		}
		// "admin" is a custom claim set through the Admin SDK; absent means false.
		admin, _ := token.Claims["admin"].(bool)
		c.Set(ContextIsAdmin, admin)

		c.Next()
	}
}

// RequireAuth rejects anonymous requests. It must run after Authenticate.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextUserID) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errorResponse("unauthenticated", "Authorization header is required"))
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin custom claim.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextUserID) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errorResponse("unauthenticated", "Authorization header is required"))
			return
		}
		// Authenticated but not an operator.
		if !c.GetBool(ContextIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				errorResponse("permission-denied", "Admin privileges are required"))
			return
		}
		c.Next()
	}
}
