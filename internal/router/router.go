package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/handler"
	"github.com/careslot/careslot-api/internal/middleware"
	"github.com/careslot/careslot-api/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all session-related routes.  Register, login and
// refresh live under /v1/auth and carry no JWT requirement: refresh is
// authenticated by the cookie-borne rotating secret, not by an access
// token.  Logout requires a valid access token to name the user whose
// session is cleared.  The optional rate limiter shields the credential
// endpoints from brute force.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh secret on every call; an old secret is good for
	// exactly one exchange.
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterProfile registers the authenticated profile endpoints.
func RegisterProfile(e *echo.Echo, p *handler.ProfileHandler, jwtSecret string) {
	g := e.Group("/v1/profile")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.GET("", p.Get)
	g.PUT("", p.Update)
}

// RegisterBookings registers the appointment and test-booking lifecycle
// endpoints.  Creation is limited to PATIENT accounts; reads and status
// updates are open to any authenticated role, with per-resource ownership
// checks done in the handlers after the resource is loaded.
func RegisterBookings(e *echo.Echo, a *handler.AppointmentHandler, t *handler.TestBookingHandler, jwtSecret string) {
	appt := e.Group("/v1/appointments")
	appt.Use(middleware.JWTAuth(jwtSecret))
	appt.POST("", a.Create, middleware.RequireRole(model.RolePatient))
	appt.GET("", a.List)
	appt.GET("/:id", a.Get)
	appt.PATCH("/:id/status", a.UpdateStatus)
	appt.POST("/:id/cancel", a.Cancel)

	tb := e.Group("/v1/test-bookings")
	tb.Use(middleware.JWTAuth(jwtSecret))
	tb.POST("", t.Create, middleware.RequireRole(model.RolePatient))
	tb.GET("", t.List)
	tb.GET("/:id", t.Get)
	tb.PATCH("/:id/status", t.UpdateStatus)
	tb.POST("/:id/cancel", t.Cancel)
	// Report delivery is operator-side only; the handler additionally
	// checks that a LAB_OWNER owns this specific lab.
	tb.POST("/:id/report", t.UploadReport,
		middleware.RequireRole(model.RoleLabOwner, model.RoleStaff, model.RoleAdmin))
}

// RegisterReviews registers review creation and listing for doctors and
// labs.  Listing is public; creating requires authentication.
func RegisterReviews(e *echo.Echo, r *handler.ReviewHandler, jwtSecret string) {
	e.GET("/v1/doctors/:id/reviews", r.ListForDoctor)
	e.GET("/v1/labs/:id/reviews", r.ListForLab)
	e.POST("/v1/doctors/:id/reviews", r.CreateForDoctor, middleware.JWTAuth(jwtSecret))
	e.POST("/v1/labs/:id/reviews", r.CreateForLab, middleware.JWTAuth(jwtSecret))
}
