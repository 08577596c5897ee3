package router

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayatose/refbako/app/middleware"
	"github.com/ayatose/refbako/app/services"
	"github.com/ayatose/refbako/config"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHandlers answers every handler interface with a marker body so the
// tests can tell which route a request landed on.
type stubHandlers struct{}

func (stubHandlers) respond(c fiber.Ctx, marker string) error {
	return c.Status(fiber.StatusOK).SendString(marker)
}

func (s stubHandlers) Signup(c fiber.Ctx) error  { return s.respond(c, "signup") }
func (s stubHandlers) Login(c fiber.Ctx) error   { return s.respond(c, "login") }
func (s stubHandlers) Logout(c fiber.Ctx) error  { return s.respond(c, "logout") }
func (s stubHandlers) List(c fiber.Ctx) error    { return s.respond(c, "list") }
func (s stubHandlers) Get(c fiber.Ctx) error     { return s.respond(c, "get") }
func (s stubHandlers) Create(c fiber.Ctx) error  { return s.respond(c, "create") }
func (s stubHandlers) Delete(c fiber.Ctx) error  { return s.respond(c, "delete") }
func (s stubHandlers) Copy(c fiber.Ctx) error    { return s.respond(c, "copy") }
func (s stubHandlers) Analyze(c fiber.Ctx) error { return s.respond(c, "analyze") }
func (s stubHandlers) Export(c fiber.Ctx) error  { return s.respond(c, "export") }
func (s stubHandlers) Scrape(c fiber.Ctx) error  { return s.respond(c, "scrape") }

func newRouterForTest(t *testing.T) (*fiber.App, string) {
	t.Helper()

	tokenService, err := services.NewTokenService(
		time.Hour,
		"refbako-auth",
		"refbako-clients",
		false,
		"",
		"",
		"test-secret-key-for-jwt-token-generation-32-chars",
	)
	require.NoError(t, err)

	token, err := tokenService.GenerateToken(1, "hanako@example.com")
	require.NoError(t, err)

	stubs := stubHandlers{}
	r := NewFiberRouter(
		stubs,
		stubs,
		stubs,
		stubs,
		middleware.NewAuthMiddleware(tokenService),
		config.MetricsConfig{},
	)
	r.SetupRoutes()

	return r.GetApp(), token
}

func TestCopyReferenceRoutedAsPost(t *testing.T) {
	app, token := newRouterForTest(t)

	req := httptest.NewRequest("POST", "/api/references/1/copy", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "copy", string(body))
}

func TestCopyReferenceRejectsGet(t *testing.T) {
	app, token := newRouterForTest(t)

	req := httptest.NewRequest("GET", "/api/references/1/copy", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app, _ := newRouterForTest(t)

	req := httptest.NewRequest("POST", "/api/references/1/copy", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
