package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PLANNER_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.MessageStore)
	assert.Equal(t, 10, cfg.SemanticTopK)
	assert.Equal(t, 1000, cfg.MaxCandidates)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.toml")
	body := `
message_store = "memory"
semantic_top_k = 5
planner_timezone = "Asia/Seoul"
allowed_origins = ["https://app.example.com"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("PLANNER_CONFIG", path)
	t.Setenv("SEMANTIC_TOP_K", "7")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.MessageStore)
	assert.Equal(t, 7, cfg.SemanticTopK, "environment overrides the file")
	assert.Equal(t, "Asia/Seoul", cfg.Location().String())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"MESSAGE_STORE": "dynamo"}},
		{"mongodb without url", map[string]string{"MESSAGE_STORE": "mongodb", "MONGODB_URL": ""}},
		{"bad timezone", map[string]string{"PLANNER_TIMEZONE": "Mars/Olympus"}},
		{"zero cap", map[string]string{"MAX_CANDIDATES": "0"}},
		{"unsupported embedding model", map[string]string{"EMBEDDING_MODEL": "text-embedding-3-small"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PLANNER_CONFIG", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("PLANNER_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))
	_, err := Load()
	assert.Error(t, err)
}
