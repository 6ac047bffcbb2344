package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/careslot/careslot-api/internal/utils"
)

const testSecret = "test-signing-secret"

func newEchoRequest(t *testing.T, authHeader string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestJWTAuthMissingHeader(t *testing.T) {
	c, rec := newEchoRequest(t, "")
	if err := JWTAuth(testSecret)(okHandler)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthBadToken(t *testing.T) {
	c, rec := newEchoRequest(t, "Bearer garbage")
	if err := JWTAuth(testSecret)(okHandler)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("different-secret", 7, "PATIENT", 60)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	c, rec := newEchoRequest(t, "Bearer "+tok.Token)
	if err := JWTAuth(testSecret)(okHandler)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthValidTokenInjectsIdentity(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 7, "DOCTOR", 60)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	c, rec := newEchoRequest(t, "Bearer "+tok.Token)

	var gotUser interface{}
	var gotRole interface{}
	inner := func(c echo.Context) error {
		gotUser = c.Get("user_id")
		gotRole = c.Get("role")
		return c.NoContent(http.StatusOK)
	}
	if err := JWTAuth(testSecret)(inner)(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if uid, ok := gotUser.(uint64); !ok || uid != 7 {
		t.Errorf("user_id = %v, want uint64 7", gotUser)
	}
	if role, ok := gotRole.(string); !ok || role != "DOCTOR" {
		t.Errorf("role = %v, want DOCTOR", gotRole)
	}
}
