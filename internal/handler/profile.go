package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/repository"
)

// ProfileHandler serves the authenticated user's own profile.
type ProfileHandler struct {
	Users *repository.UserRepo
}

func NewProfileHandler(u *repository.UserRepo) *ProfileHandler {
	return &ProfileHandler{Users: u}
}

type profileResp struct {
	ID          uint64     `json:"id"`
	Email       string     `json:"email"`
	Phone       *string    `json:"phone,omitempty"`
	FullName    string     `json:"full_name"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type profileUpdateReq struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
}

// Get returns the caller's profile.
func (h *ProfileHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, profileResp{
		ID: u.ID, Email: u.Email, Phone: u.Phone, FullName: u.FullName,
		Role: u.Role.String(), LastLoginAt: u.LastLoginAt, CreatedAt: u.CreatedAt,
	})
}

// Update applies a partial update to the caller's profile.  Absent fields
// are left untouched.
func (h *ProfileHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req profileUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.FullName == nil && req.Phone == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}
	if req.FullName != nil && strings.TrimSpace(*req.FullName) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "full_name must not be empty"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Users.UpdateProfile(ctx, userID, req.FullName, req.Phone); err != nil {
		if errors.Is(err, repository.ErrPhoneExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "phone already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, profileResp{
		ID: u.ID, Email: u.Email, Phone: u.Phone, FullName: u.FullName,
		Role: u.Role.String(), LastLoginAt: u.LastLoginAt, CreatedAt: u.CreatedAt,
	})
}
