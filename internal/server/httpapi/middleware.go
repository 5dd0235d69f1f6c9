package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	claimsKey       = "claims"
	requestIDHeader = "X-Request-ID"
)

// RequestLogger tags each request with an id (taken from X-Request-ID when
// the caller sent one) and logs it once it completes.
func RequestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		l.Info(c.Request.Context(), "request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Authenticate rejects requests without a valid access token in the
// Authorization header and stores the claims for later handlers.
func Authenticate(gate Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := gate.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireRole must run after Authenticate. The role is checked against the
// user store, not the token.
func RequireRole(gate Gate, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := claimsFrom(c)

		if err := gate.Authorize(c.Request.Context(), claims, role); err != nil {
			if errors.Is(err, common.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}

func claimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
