package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/session-api/internal/config"
	"jan-server/services/session-api/internal/domain/conversation"
)

func TestProvideConversationDefaults(t *testing.T) {
	defaults, err := ProvideConversationDefaults(&config.Config{DefaultModel: "gpt-4"})
	require.NoError(t, err)
	assert.Equal(t, conversation.ModelGPT4, defaults.Model)

	_, err = ProvideConversationDefaults(&config.Config{DefaultModel: "llama"})
	assert.Error(t, err)
}

func TestProvideCompletionParams(t *testing.T) {
	params := ProvideCompletionParams(&config.Config{
		CompletionMaxTokens:   512,
		CompletionTemperature: 0.2,
		ProviderTimeout:       5 * time.Second,
		ContextWindowSize:     4,
	})
	assert.Equal(t, 512, params.MaxTokens)
	assert.Equal(t, float32(0.2), params.Temperature)
	assert.Equal(t, 5*time.Second, params.Timeout)
	assert.Equal(t, 4, params.WindowSize)
}

func TestPrincipalHasScope(t *testing.T) {
	p := Principal{Scopes: []string{"conversations:read"}}
	assert.True(t, p.HasScope("conversations:read"))
	assert.False(t, p.HasScope("conversations:write"))
}
