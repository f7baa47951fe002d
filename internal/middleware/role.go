package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Roles carried in the JWT "role" claim.
const (
	RoleStudent = "STUDENT"
	RoleAdmin   = "ADMIN"
)

// RequireRole aborts with 403 unless the authenticated user holds one of
// roles.  It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ContextRole).(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
