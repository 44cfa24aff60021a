package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"

	"festreg/internal/dto"
	"festreg/internal/model"
)

const (
	ctxUserID = "auth.user_id"
	ctxRole   = "auth.role"
)

// Middleware rejects requests without a valid bearer token and stores the
// caller's id and role on the context.
func Middleware(t *Tokens) gin.HandlerFunc {
	return func(c *ginext.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			dto.UnauthorizedError(c, "Missing bearer token")
			return
		}
		claims, err := t.Verify(strings.TrimSpace(raw))
		if err != nil {
			dto.UnauthorizedError(c, "Invalid or expired token")
			return
		}
		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *ginext.Context) {
		if Role(c) != model.RoleAdmin {
			dto.ErrorResponse(c, http.StatusForbidden, &dto.Error{Code: "NOT_AUTHORIZED", Desc: "Administrator access required"})
			return
		}
		c.Next()
	}
}

func UserID(c *ginext.Context) string {
	return c.GetString(ctxUserID)
}

func Role(c *ginext.Context) model.Role {
	if r, ok := c.Get(ctxRole); ok {
		if role, ok := r.(model.Role); ok {
			return role
		}
	}
	return ""
}
