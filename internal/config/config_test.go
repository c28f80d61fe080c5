package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/session-api/internal/domain/conversation"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("MODELS_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.Equal(t, LockBackendLocal, cfg.LockBackend)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 2000, cfg.CompletionMaxTokens)
	assert.InDelta(t, 0.7, cfg.CompletionTemperature, 1e-6)
	assert.Equal(t, 10, cfg.ContextWindowSize)
	assert.Equal(t, "gpt-3.5-turbo", cfg.DefaultModel)
	assert.NotNil(t, cfg.Models)
	assert.Same(t, cfg, GetGlobal())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres"}},
		{"unknown store", map[string]string{"STORE_BACKEND": "mongo"}},
		{"redis lock without url", map[string]string{"STORE_BACKEND": "memory", "LOCK_BACKEND": "redis"}},
		{"lease shorter than provider timeout", map[string]string{"STORE_BACKEND": "memory", "LOCK_BACKEND": "redis", "REDIS_URL": "redis://localhost:6379/0", "LOCK_TTL": "10s"}},
		{"unknown default model", map[string]string{"STORE_BACKEND": "memory", "DEFAULT_MODEL": "gpt-2"}},
		{"zero window", map[string]string{"STORE_BACKEND": "memory", "CONTEXT_WINDOW_SIZE": "0"}},
		{"auth without jwks", map[string]string{"STORE_BACKEND": "memory", "AUTH_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MODELS_CONFIG_PATH", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseModelCatalog(t *testing.T) {
	catalog, err := ParseModelCatalog([]byte(`
models:
  gpt-4:
    upstream: gpt-4-0613
    prompt_per_1k: "0.03"
    completion_per_1k: "0.06"
  gpt-3.5-turbo: {}
`))
	require.NoError(t, err)

	price, ok := catalog.Pricing().PriceFor(conversation.ModelGPT4)
	require.True(t, ok)
	assert.Equal(t, "0.03", price.PromptPer1K.String())
	assert.Equal(t, "gpt-4-0613", catalog.UpstreamName(conversation.ModelGPT4))
	assert.Equal(t, "gpt-3.5-turbo", catalog.UpstreamName(conversation.ModelGPT35Turbo))

	_, ok = catalog.Pricing().PriceFor(conversation.ModelGPT35Turbo)
	assert.False(t, ok)
}

func TestParseModelCatalogRejectsUnknownModel(t *testing.T) {
	_, err := ParseModelCatalog([]byte("models:\n  davinci:\n    prompt_per_1k: \"0.02\"\n"))
	assert.Error(t, err)

	_, err = ParseModelCatalog([]byte("models:\n  gpt-4:\n    prompt_per_1k: \"-1\"\n"))
	assert.Error(t, err)
}

func TestLoadModelCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  gpt-4-turbo:\n    prompt_per_1k: \"0.01\"\n    completion_per_1k: \"0.03\"\n"), 0o600))

	catalog, err := LoadModelCatalog(path)
	require.NoError(t, err)
	_, ok := catalog.Pricing().PriceFor(conversation.ModelGPT4Turbo)
	assert.True(t, ok)

	empty, err := LoadModelCatalog(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Empty(t, empty.Pricing())
}
