package middleware_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/domestyx/internal/apperr"
	"github.com/example/domestyx/internal/cache"
	"github.com/example/domestyx/internal/middleware"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/storage"
	"github.com/example/domestyx/internal/utils"
)

const secret = "test-secret"

func newApp(store *storage.MemoryStore, revoked cache.RevocationList) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := apperr.As(err); ok {
				return c.Status(e.Status()).SendString(e.Code)
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
	auth := middleware.AuthMiddleware(secret, store, revoked, nil)
	app.Get("/me", auth, func(c *fiber.Ctx) error {
		return c.SendString(string(middleware.CurrentActor(c).Role))
	})
	app.Get("/employers-only", auth, middleware.RequireRoles(models.RoleEmployer), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/maybe", middleware.OptionalAuthMiddleware(secret, store, revoked, nil), func(c *fiber.Ctx) error {
		return c.SendString(middleware.CurrentActor(c).ID.String())
	})
	return app
}

func request(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	store := storage.NewMemoryStore()
	revoked := cache.NewMemoryRevocationList()
	app := newApp(store, revoked)

	worker := store.AddUser(models.User{Email: "w@example.com", Role: models.RoleWorker, IsActive: true})
	inactive := store.AddUser(models.User{Email: "i@example.com", Role: models.RoleWorker, IsActive: false})

	token, err := utils.GenerateToken(secret, worker.ID, string(worker.Role), utils.TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	refresh, err := utils.GenerateToken(secret, worker.ID, string(worker.Role), utils.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)
	inactiveToken, err := utils.GenerateToken(secret, inactive.ID, string(inactive.Role), utils.TokenTypeAccess, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", ""))
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", "garbage"))
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", refresh))
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", inactiveToken))
	assert.Equal(t, fiber.StatusOK, request(t, app, "/me", token))

	assert.Equal(t, fiber.StatusForbidden, request(t, app, "/employers-only", token))

	claims, err := utils.ParseToken(secret, token, utils.TokenTypeAccess)
	require.NoError(t, err)
	require.NoError(t, revoked.Revoke(context.Background(), claims.ID, time.Hour))
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/me", token))
}

func TestOptionalAuthMiddleware(t *testing.T) {
	store := storage.NewMemoryStore()
	app := newApp(store, cache.NewMemoryRevocationList())

	assert.Equal(t, fiber.StatusOK, request(t, app, "/maybe", ""))
	assert.Equal(t, fiber.StatusUnauthorized, request(t, app, "/maybe", "garbage"))
}
