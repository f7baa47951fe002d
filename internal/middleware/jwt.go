package middleware // reusable HTTP middleware for the seat API

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// signed with HS256 and stores its subject and role claims in the context.
// Handlers read them back with Identity.
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(raw, claims, keyFunc)
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(ContextUserID, sub)
			c.Set(ContextRole, claims["role"])
			return next(c)
		}
	}
}
