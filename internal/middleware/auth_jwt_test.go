package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

const testSecret = "unit_test_secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

func runAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, echo.Context, bool) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/orders/my-orders", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	nextCalled := false
	h := middleware.AuthJWT(config.Config{JWTSecret: testSecret})(func(c echo.Context) error {
		nextCalled = true
		return c.NoContent(http.StatusOK)
	})

	err := h(c)
	assert.NoError(t, err)
	return rec, c, nextCalled
}

func TestAuthJWT_ValidTokenSetsContext(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "42",
		"role": "user",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	rec, c, nextCalled := runAuth(t, "Bearer "+token)

	assert.True(t, nextCalled)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), c.Get(middleware.CtxUserIDKey))
	assert.Equal(t, "user", c.Get(middleware.CtxUserRoleKey))
}

func TestAuthJWT_MissingHeader(t *testing.T) {
	rec, _, nextCalled := runAuth(t, "")
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_WrongSecret(t *testing.T) {
	token := signToken(t, "other_secret", jwt.MapClaims{
		"sub":  "42",
		"role": "user",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	rec, _, nextCalled := runAuth(t, "Bearer "+token)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_ExpiredToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "42",
		"role": "user",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	})

	rec, _, nextCalled := runAuth(t, "Bearer "+token)
	assert.False(t, nextCalled)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoleGuard(t *testing.T) {
	e := echo.New()

	run := func(role interface{}) (*httptest.ResponseRecorder, bool) {
		req := httptest.NewRequest(http.MethodGet, "/orders/all", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set(middleware.CtxUserRoleKey, role)
		}

		nextCalled := false
		h := middleware.AdminRoleGuard()(func(c echo.Context) error {
			nextCalled = true
			return c.NoContent(http.StatusOK)
		})
		assert.NoError(t, h(c))
		return rec, nextCalled
	}

	rec, called := run("admin")
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, called = run("user")
	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, called = run(nil)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
