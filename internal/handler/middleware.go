package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/model"
)

// userKey is the gin context key the auth middleware stores the caller under.
const userKey = "rollcall.user"

// requireRole authenticates the request via HTTP Basic credentials and
// requires the caller to hold the given role. There are no sessions: every
// request carries credentials and is checked against the roster directly.
func (h *Handler) requireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="rollcall"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "credentials required"})
			return
		}
		u, err := h.directory.Authenticate(c.Request.Context(), id, password, role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// requireUser authenticates the caller without constraining the role.
func (h *Handler) requireUser() gin.HandlerFunc {
	return h.requireRole("")
}

// currentUser returns the authenticated caller stored by the middleware.
func currentUser(c *gin.Context) model.User {
	v, _ := c.Get(userKey)
	u, _ := v.(model.User)
	return u
}
