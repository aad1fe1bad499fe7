package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/account-service/internal/core/domain"
	"github.com/99minutos/account-service/internal/pkg/token"
)

func newManager(t *testing.T, secret string) *token.Manager {
	t.Helper()
	m, err := token.NewManager(secret, time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return m
}

func signedToken(t *testing.T, m *token.Manager) string {
	t.Helper()
	raw, err := m.Issue(token.Identity{ID: "7", Name: "alice", Role: "admin", PermittedSystems: []string{"billing"}})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return raw
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	m := newManager(t, "secret")
	for _, header := range []string{"Bearer " + signedToken(t, m), signedToken(t, m)} {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		called := false
		handler := Auth(m)(func(c echo.Context) error {
			called = true
			claims, ok := ClaimsFromContext(c)
			if !ok || claims.Name != "alice" {
				t.Fatalf("claims not set")
			}
			if c.Get("role") != "admin" {
				t.Fatalf("role not set")
			}
			if c.Get("user_id") != "7" {
				t.Fatalf("user_id not set")
			}
			return c.NoContent(http.StatusOK)
		})

		if err := handler(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if !called {
			t.Fatalf("next not called")
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
}

func assertRejected(t *testing.T, verifier TokenVerifier, header string, want error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Auth(verifier)(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	err := handler(c)
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("rejection must be left to the error handler, body written: %s", rec.Body.String())
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	assertRejected(t, newManager(t, "secret"), "", domain.ErrTokenMissing)
}

func TestAuthMiddleware_EmptyBearer(t *testing.T) {
	assertRejected(t, newManager(t, "secret"), "Bearer ", domain.ErrTokenMissing)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	assertRejected(t, newManager(t, "secret"), "Bearer not-a-token", domain.ErrTokenInvalid)
}

func TestAuthMiddleware_ForeignSecret(t *testing.T) {
	foreign := signedToken(t, newManager(t, "other-secret"))
	assertRejected(t, newManager(t, "secret"), "Bearer "+foreign, domain.ErrTokenInvalid)
}

func TestAuthMiddleware_Expired(t *testing.T) {
	past := time.Now().Add(-3 * time.Hour)
	issuer, err := token.NewManager("secret", time.Hour, token.WithClock(func() time.Time { return past }))
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	assertRejected(t, newManager(t, "secret"), "Bearer "+signedToken(t, issuer), domain.ErrTokenExpired)
}
