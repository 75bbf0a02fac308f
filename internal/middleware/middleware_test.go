package middleware_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"minimarket/internal/apperrors"
	"minimarket/internal/auth"
	"minimarket/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type staticAuthenticator map[string]*auth.Identity

func (s staticAuthenticator) Authenticate(token string) (*auth.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidSignature
}

func newApp(diagnostic bool) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(quietLog, diagnostic)})
	gate := middleware.AuthRequired(staticAuthenticator{"good": {SubjectID: "u1", DisplayName: "alice"}}, "x-token")
	app.Get("/private", gate, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true, "uid": middleware.IdentityFrom(c).SubjectID})
	})
	app.Get("/db", func(c *fiber.Ctx) error {
		return apperrors.DatabaseUnavailable(errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"))
	})
	app.Get("/validation", func(c *fiber.Ctx) error {
		return apperrors.Validation("Validation failed", map[string]string{"Name": "required"})
	})
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestAuthRequired(t *testing.T) {
	app := newApp(false)

	for _, tc := range []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"invalid", "forged", http.StatusUnauthorized},
		{"valid", "good", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.token != "" {
				req.Header.Set("x-token", tc.token)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			body := decode(t, resp)
			if tc.status == http.StatusOK {
				assert.Equal(t, "u1", body["uid"])
			} else {
				assert.Equal(t, false, body["ok"])
				assert.NotEmpty(t, body["msg"])
			}
		})
	}
}

func TestErrorHandler_HidesServerDetail(t *testing.T) {
	resp, err := newApp(false).Test(httptest.NewRequest(http.MethodGet, "/db", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "service temporarily unavailable", body["msg"])
	assert.NotContains(t, body, "error")
}

func TestErrorHandler_DiagnosticDetail(t *testing.T) {
	resp, err := newApp(true).Test(httptest.NewRequest(http.MethodGet, "/db", nil), -1)
	require.NoError(t, err)

	body := decode(t, resp)
	assert.Contains(t, body["error"], "connection refused")
}

func TestErrorHandler_ValidationFields(t *testing.T) {
	resp, err := newApp(true).Test(httptest.NewRequest(http.MethodGet, "/validation", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "Validation failed", body["msg"])
	assert.Equal(t, map[string]interface{}{"Name": "required"}, body["errors"])
	assert.NotContains(t, body, "error")
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.RateLimit(2, 0, nil, "test:"))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestPublicCache_WritesInvalidate(t *testing.T) {
	pc := middleware.NewPublicCache(time.Minute, nil, "x-token")
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(quietLog, false)})
	app.Use(pc.Invalidate())

	stock := 1
	app.Get("/stock", pc.Handler(), func(c *fiber.Ctx) error {
		return c.SendString(strconv.Itoa(stock))
	})
	app.Post("/stock", func(c *fiber.Ctx) error {
		stock++
		return c.SendStatus(fiber.StatusCreated)
	})
	app.Post("/broken", func(c *fiber.Ctx) error {
		stock = 100
		return apperrors.Validation("Validation failed", nil)
	})

	read := func(token string) string {
		req := httptest.NewRequest(http.MethodGet, "/stock", nil)
		if token != "" {
			req.Header.Set("x-token", token)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(raw)
	}
	write := func(path string) {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, path, nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, "1", read(""))
	stock = 7
	assert.Equal(t, "1", read(""), "served from cache")
	assert.Equal(t, "7", read("good"), "token holders bypass the cache")

	write("/broken")
	assert.Equal(t, "1", read(""), "failed writes keep the cache")

	write("/stock")
	assert.Equal(t, "101", read(""))
}
