// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements AdminAuth, a shared-secret guard for the /admin route
// group. The secret is compared in constant time. When no secret is
// configured the whole group is disabled rather than left open.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuth returns a Gin middleware that requires the configured admin
// token, supplied either as "Authorization: Bearer <token>" or in the
// X-Admin-Token header. An empty configured token rejects every request.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			abortUnauthorized(c, "admin access is not configured")
			return
		}

		supplied := c.GetHeader("X-Admin-Token")
		if supplied == "" {
			auth := c.GetHeader("Authorization")
			if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
				supplied = rest
			}
		}

		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			abortUnauthorized(c, "invalid admin token")
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
