// Package auth guards the mutating endpoints (upload, invalidate, queue
// control) behind a pluggable Authenticator, keeping Clerk as the concrete
// backend without hard-wiring session verification into every handler.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/gin-gonic/gin"
)

// ErrMissingToken and ErrInvalidToken classify authentication failures for
// the HTTP layer's apperr translation.
var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid or expired token")
)

// Authenticator verifies the bearer token on a request and returns an
// opaque subject identifier (e.g. Clerk's user id).
type Authenticator interface {
	Verify(ctx context.Context, token string) (subject string, err error)
}

// ClerkAuthenticator verifies session tokens against Clerk, per spec's
// admin/operator surface for upload and queue-control endpoints.
type ClerkAuthenticator struct{}

// NewClerkAuthenticator initializes the Clerk SDK with the given secret key
// and returns an Authenticator backed by it.
func NewClerkAuthenticator(secretKey string) *ClerkAuthenticator {
	clerk.SetKey(secretKey)
	return &ClerkAuthenticator{}
}

func (c *ClerkAuthenticator) Verify(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token, Leeway: 30 * time.Second})
	if err != nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// DisabledAuthenticator accepts every request, used when no auth provider
// is configured (local development, or deployments that front this service
// with their own gateway auth).
type DisabledAuthenticator struct{}

func (DisabledAuthenticator) Verify(context.Context, string) (string, error) {
	return "anonymous", nil
}

// RequireAuth builds gin middleware enforcing a bearer token against auth.
func RequireAuth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		subject, err := authenticator.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set("subject", subject)
		c.Next()
	}
}
