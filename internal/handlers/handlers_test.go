package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/domestyx/internal/cache"
	"github.com/example/domestyx/internal/config"
	"github.com/example/domestyx/internal/handlers"
	"github.com/example/domestyx/internal/models"
	"github.com/example/domestyx/internal/otp"
	"github.com/example/domestyx/internal/routes"
	"github.com/example/domestyx/internal/storage"
	"github.com/example/domestyx/internal/utils"
	"github.com/example/domestyx/internal/workflow"
)

const (
	testSecret = "handler-test-secret"
	testCode   = "123456"
)

type recordingSender struct {
	mu      sync.Mutex
	targets []string
}

func (r *recordingSender) Send(ctx context.Context, channel models.OTPChannel, target, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, target)
	return nil
}

type testEnv struct {
	t      *testing.T
	app    *fiber.App
	store  *storage.MemoryStore
	sender *recordingSender
}

// newTestEnv serves the real route table over in-memory stores. Endpoints
// that query gorm directly are covered by the integration suite.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, func(store *storage.MemoryStore) handlers.AccountStore { return store })
}

func newTestEnvWith(t *testing.T, accountsFor func(*storage.MemoryStore) handlers.AccountStore) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	sender := &recordingSender{}
	log := zap.NewNop()

	cfg := &config.Config{
		JWTSecret:    testSecret,
		TokenExpires: time.Hour,
		RefreshTTL:   24 * time.Hour,
		OTP:          config.OTPConfig{RequireForRegistration: true},
	}
	engine := otp.NewEngine(otp.Config{
		ExpirySeconds:             600,
		ResendCooldownSeconds:     60,
		MaxPerHour:                5,
		MaxAttempts:               5,
		VerificationWindowSeconds: 1800,
		DeliveryTimeout:           time.Second,
		HashCost:                  bcrypt.MinCost,
	}, store, sender, log, otp.WithCodeGenerator(func() (string, error) { return testCode, nil }))

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	routes.Register(app, routes.Dependencies{
		Config:   cfg,
		Accounts: accountsFor(store),
		OTP:      engine,
		Workflow: workflow.NewService(store, log),
		Revoked:  cache.NewMemoryRevocationList(),
		Log:      log,
	})
	return &testEnv{t: t, app: app, store: store, sender: sender}
}

func (e *testEnv) do(method, path, token string, body any) (int, map[string]any) {
	e.t.Helper()
	return doJSON(e.t, e.app, method, path, token, body)
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (e *testEnv) user(role models.Role, email string) (models.User, string) {
	e.t.Helper()
	u := e.store.AddUser(models.User{Email: email, Role: role, IsActive: true})
	token, err := utils.GenerateToken(testSecret, u.ID, string(role), utils.TokenTypeAccess, time.Hour)
	require.NoError(e.t, err)
	return u, token
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}
