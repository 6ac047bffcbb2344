package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/model"
)

// RequireRole returns a middleware that enforces that the authenticated
// user's role is a member of the given capability set.  It assumes JWTAuth
// has already stored the role in the context under "role".  A missing or
// non-member role is rejected with 403 Forbidden; the capability check is
// deliberately separate from authentication so the two failures map to
// distinct status codes.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v := c.Get("role")
			role, ok := v.(string)
			if !ok || !allowed[model.Role(role)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
