package middleware

import (
	"net/http"
	"strings"

	"teamflow/backend/internal/apperr"
	"teamflow/backend/internal/services"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// TokenParser resolves a bearer token to the user it was issued to.
type TokenParser interface {
	ParseAccessToken(token string) (services.Actor, error)
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   apperr.KindUnauthenticated.String(),
		"message": message,
	})
}

// Identity verifies the bearer token and stores the caller's Actor on the
// context. Requests without a valid token never reach the handler.
func Identity(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			unauthorized(c, "Authorization header is required")
			return
		}
		scheme, tokenStr, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenStr) == "" {
			unauthorized(c, "Authorization header must use Bearer token")
			return
		}

		actor, err := parser.ParseAccessToken(strings.TrimSpace(tokenStr))
		if err != nil {
			unauthorized(c, "Token validation failed")
			return
		}

		c.Set(actorKey, actor)
		c.Set("user_id", actor.ID.String())
		c.Next()
	}
}

// ActorFrom returns the caller set by Identity. The zero Actor is returned
// for unauthenticated requests, which every service rejects.
func ActorFrom(c *gin.Context) services.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return services.Actor{}
	}
	actor, _ := v.(services.Actor)
	return actor
}
