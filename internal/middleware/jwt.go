package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the authenticated identity into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers
// behind this middleware read the identity via c.Get("user_id") (uint64)
// and c.Get("role") (string).  Any verification failure, including expiry,
// is answered with 401 and the request short-circuits; the failure reason
// is never disclosed to the client.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			ident, err := utils.VerifyAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set("user_id", ident.UserID)
			c.Set("role", ident.Role)
			return next(c)
		}
	}
}

// bearerToken extracts the raw token from the Authorization header, or
// returns "" when the header is missing or malformed.
func bearerToken(c echo.Context) string {
	const prefix = "Bearer "
	auth := c.Request().Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return ""
	}
	return auth[len(prefix):]
}
