package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cerberus-auth/cerberus/core"
	"github.com/cerberus-auth/cerberus/ports"
	"github.com/cerberus-auth/cerberus/service"
)

const contextKeySubject = "subject"

// AuthMiddleware creates middleware that validates access tokens
func AuthMiddleware(tokenizer ports.Tokenizer, accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		if len(auth) < 8 || auth[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		token, err := tokenizer.Decode(auth[7:])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		if token.Type != core.TokenTypeAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if err := accounts.VerifyToken(c.Request.Context(), token); err != nil {
			switch {
			case errors.Is(err, core.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			case errors.Is(err, core.ErrTokenInvalidated):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token invalidated"})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
			}
			return
		}

		c.Set(contextKeySubject, token.Subject)
		c.Next()
	}
}
