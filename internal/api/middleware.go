package api

import (
	"net/http"
	"strings"

	"github.com/example/quizbot/internal/auth"
	"github.com/example/quizbot/internal/quiz"
	"github.com/gin-gonic/gin"
)

const (
	ctxUserID  = "user_id"
	ctxIsAdmin = "is_admin"
)

// JWTAuth requires a valid bearer token and stores the caller in the context
func JWTAuth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthenticated(c, "authorization header required")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthenticated(c, "invalid authorization header format")
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			abortUnauthenticated(c, "invalid or expired token")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

// AdminOnly rejects callers without the admin claim. Must run after JWTAuth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(ctxIsAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "admin access required", Kind: "forbidden"})
			return
		}
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: msg, Kind: string(quiz.KindUnauthenticated)})
}

// currentUser returns the authenticated caller
func currentUser(c *gin.Context) (int64, error) {
	id := c.GetInt64(ctxUserID)
	if id == 0 {
		return 0, quiz.ErrUnauthenticated
	}
	return id, nil
}
