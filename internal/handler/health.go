package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// Health answers liveness probes.  It reports only that the process is up;
// database or broker trouble surfaces through the endpoints that use them.
func Health(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "careslot-api"})
}
