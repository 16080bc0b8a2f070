package bootstrap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/adapter/out/memory"
	"github.com/InboxGenie/IG-Gmail-MCP/config"
	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.MessageStore = config.StoreMemory
	cfg.JWTSecret = "bootstrap-secret"
	cfg.OpenAIAPIKey = "unused"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewDependencies_Memory(t *testing.T) {
	deps, cleanup, err := NewDependencies(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	t.Cleanup(cleanup)

	assert.Nil(t, deps.DB)
	assert.Nil(t, deps.Redis)
	assert.IsType(t, &memory.MessageStore{}, deps.MessageStore)
	assert.IsType(t, &memory.AccountRepository{}, deps.Accounts)
	assert.IsType(t, &memory.VectorStore{}, deps.VectorStore)
	assert.NotNil(t, deps.SearchService)
}

func TestNewDependencies_PostgresRequiresURL(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.MessageStore = config.StorePostgres

	_, _, err := NewDependencies(context.Background(), cfg)
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestNewDependencies_BadSeedFile(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.MemorySeedFile = filepath.Join(t.TempDir(), "missing.json")

	_, _, err := NewDependencies(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewApp_Routes(t *testing.T) {
	cfg := memoryConfig(t)
	deps, cleanup, err := NewDependencies(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	key := domain.UserKeyFromEmail("jane@x.com")
	deps.MessageStore.(*memory.MessageStore).Put(
		&domain.Message{ID: "m1", UserKey: key, Sender: "a@x.com", CreatedAt: 10},
		&domain.Message{ID: "m2", UserKey: key, Sender: "b@x.com", CreatedAt: 20},
	)
	app := NewApp(cfg, deps)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics/planner", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "jane@x.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages?sender=b@x.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":"m2"`)
	assert.NotContains(t, string(body), `"id":"m1"`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
