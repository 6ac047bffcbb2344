package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/config"
	"github.com/careslot/careslot-api/internal/model"
	"github.com/careslot/careslot-api/internal/repository"
	"github.com/careslot/careslot-api/internal/utils"
)

// refreshCookieName is the cookie carrying the rotating refresh secret.
// The access token travels as a bearer header; the refresh secret never
// does.  Keeping the stateful credential in an HTTP-only cookie and the
// stateless one in the header is a structural property of the session
// model, not a transport detail.
const refreshCookieName = "refresh_token"

// AuthHandler bundles dependencies for session endpoints: register,
// login, refresh, logout and me.
type AuthHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Role     string `json:"role"` // free-form; unrecognised values become PATIENT
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}
type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// setRefreshCookie writes the raw refresh secret into an HTTP-only,
// SameSite=Strict cookie scoped to the auth endpoints.
func (h *AuthHandler) setRefreshCookie(c echo.Context, raw string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    raw,
		Path:     "/v1/auth",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie expires the refresh cookie on the client.
func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteStrictMode,
	})
}

// openSession generates a fresh refresh secret, overwrites the stored hash
// (invalidating any previous session for the user), issues an access token
// and sets the refresh cookie.  Shared by Register and Login.
func (h *AuthHandler) openSession(ctx context.Context, c echo.Context, u model.User) (authResp, error) {
	refresh, err := utils.NewRefreshSecret(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Users.SetRefreshHash(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw)); err != nil {
		return authResp{}, err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role.String(), h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	h.setRefreshCookie(c, refresh.Raw, refresh.Exp)
	return authResp{
		User:   userPart{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role.String()},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	}, nil
}

// Register creates a user and opens a session immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	role := model.ParseRole(req.Role)
	var phone *string
	if p := strings.TrimSpace(req.Phone); p != "" {
		phone = &p
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, phone, strings.TrimSpace(req.FullName), req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		case errors.Is(err, repository.ErrPhoneExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "phone already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	resp, err := h.openSession(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "open session failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and opens a new session, invalidating any
// previous one.  Unknown email and wrong password produce the same
// response; bcrypt comparison is constant-time.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	resp, err := h.openSession(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "open session failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh exchanges the cookie-borne refresh secret for a new access token
// and a brand-new refresh secret.  Rotation is a compare-and-swap on the
// stored hash: when two callers race with the same secret, exactly one
// wins; the other is answered with 401 and must log in again.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(refreshCookieName); err == nil {
		raw = strings.TrimSpace(ck.Value)
	}
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh cookie required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	next, err := utils.NewRefreshSecret(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	userID, err := h.Users.RotateRefreshHash(ctx, utils.HashRefreshRaw(raw), utils.HashRefreshRaw(next.Raw))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidRefresh) {
			h.clearRefreshCookie(c)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rotate refresh failed"})
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role.String(), h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	h.setRefreshCookie(c, next.Raw, next.Exp)
	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role.String()},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout clears the stored refresh hash for the authenticated user and
// expires the cookie.  The clear is unconditional, so logging out twice
// ends in the same state with no error.
func (h *AuthHandler) Logout(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Users.ClearRefreshHash(ctx, userID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated identity.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"role":    c.Get("role"),
	})
}
