package middleware

import "github.com/labstack/echo/v4"

// Identity returns the caller's user id and role as stored by JWTAuth.
// ok is false when the request was not authenticated.
func Identity(c echo.Context) (userID, role string, ok bool) {
	userID, _ = c.Get(ContextUserID).(string)
	role, _ = c.Get(ContextRole).(string)
	return userID, role, userID != ""
}

// IsAdmin reports whether the caller holds the ADMIN role.
func IsAdmin(c echo.Context) bool {
	_, role, ok := Identity(c)
	return ok && role == RoleAdmin
}

func currentUserID(c echo.Context) string {
	if id, _, ok := Identity(c); ok {
		return id
	}
	return "anon"
}
