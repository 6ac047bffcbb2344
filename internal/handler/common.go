package handler // handler defines http handlers

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/model"
)

// getUserID extracts the authenticated user's ID from echo.Context and
// converts it to uint64.  JWTAuth stores it as uint64; the other branches
// tolerate values injected by tests.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getRole extracts the authenticated user's role from echo.Context.
func getRole(c echo.Context) model.Role {
	if s, ok := c.Get("role").(string); ok {
		return model.Role(s)
	}
	return ""
}

// pathID parses the :id path parameter as a positive integer.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}
