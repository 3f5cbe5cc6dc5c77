//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-office-trash/internal/config"
	"go-office-trash/internal/database"
	"go-office-trash/internal/datastore"
	"go-office-trash/internal/entity"
	"go-office-trash/internal/event"
	"go-office-trash/internal/handler"
	"go-office-trash/internal/metrics"
	"go-office-trash/internal/middleware"
	"go-office-trash/internal/model"
	"go-office-trash/internal/repository"
	"go-office-trash/internal/router"
	"go-office-trash/internal/service"
	"go-office-trash/internal/websocket"
)

const (
	adminPassword   = "admin123"
	managerPassword = "manager123"
	clerkPassword   = "clerk123"
)

type testEnv struct {
	server  *httptest.Server
	admin   string
	manager string
	clerk   string
	refresh string
}

// newTestStore uses Postgres when TEST_DATABASE_URL is set and the memory
// datastore otherwise.
func newTestStore(t *testing.T) datastore.Datastore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		return datastore.NewMemory()
	}

	ctx := context.Background()
	db, err := database.New(ctx, url, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, "TRUNCATE documents")
	require.NoError(t, err)

	return datastore.NewPostgres(db.Pool)
}

func newTestEnv(t *testing.T, mutate func(*model.TrashSettings)) *testEnv {
	t.Helper()

	settings := model.DefaultTrashSettings()
	if mutate != nil {
		mutate(&settings)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := newTestStore(t)
	registry := entity.Default()
	trashRepo := repository.NewTrashRepository(store)
	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	go func() { _ = hub.Run(ctx) }()

	authService := service.NewAuthService(repository.NewUserRepository(store), "test-secret", 15*time.Minute, 24*time.Hour)
	authService.SetBcryptCost(4)
	require.NoError(t, authService.EnsureAdmin(ctx, "admin", adminPassword))
	_, err := authService.Register(ctx, "maria", managerPassword, model.RoleManager)
	require.NoError(t, err)
	_, err = authService.Register(ctx, "tom", clerkPassword, model.RoleClerk)
	require.NoError(t, err)

	auditService := service.NewAuditService(repository.NewAuditRepository(store))
	trashService := service.NewTrashService(trashRepo, store, registry, auditService, bus)
	appMetrics := metrics.New()
	trashService.SetMetrics(appMetrics)
	entityService := service.NewEntityService(store, registry, trashService, trashRepo, auditService, bus)
	jobService := service.NewJobService(trashService, repository.NewJobRepository(store), bus)
	go func() { _ = jobService.Run(ctx) }()

	cfg := &config.Config{
		ServerPort:       "8080",
		RequestTimeout:   30 * time.Second,
		JWTSecret:        "test-secret",
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     10000,
		AuthRateLimitRPM: 10000,
		BulkRateLimitRPM: 10000,
	}

	server := httptest.NewServer(router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(authService),
		Entity: handler.NewEntityHandler(entityService, settings),
		Trash:  handler.NewTrashHandler(trashService, settings),
		Jobs:   handler.NewJobsHandler(jobService, settings),
		Audit:  handler.NewAuditHandler(auditService),
		System: handler.NewSystemHandler(store, settings),
		Events: hub.Serve,
	}, appMetrics))
	t.Cleanup(server.Close)

	env := &testEnv{server: server}
	env.admin, env.refresh = login(t, server.URL, "admin", adminPassword)
	env.manager, _ = login(t, server.URL, "maria", managerPassword)
	env.clerk, _ = login(t, server.URL, "tom", clerkPassword)
	return env
}

func login(t *testing.T, baseURL string, username string, password string) (string, string) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.True(t, parsed.Success)
	require.NotEmpty(t, parsed.Data.AccessToken)

	return parsed.Data.AccessToken, parsed.Data.RefreshToken
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *model.Meta `json:"meta"`
}

// call sends body (marshalled when not nil) and decodes the envelope.
func (e *testEnv) call(t *testing.T, method string, path string, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp.StatusCode, parsed
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}
