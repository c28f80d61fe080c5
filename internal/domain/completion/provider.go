package completion

import (
	"context"
	"time"

	"jan-server/services/session-api/internal/domain/conversation"
)

// Message is one entry of the history sent to the provider.
type Message struct {
	Role    conversation.Role
	Content string
}

// Params are the generation settings applied to every call. They come from configuration and
// are not adjustable per request.
type Params struct {
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	WindowSize  int
}

func DefaultParams() Params {
	return Params{
		MaxTokens:   2000,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
		WindowSize:  conversation.DefaultWindowSize,
	}
}

type Request struct {
	Model       conversation.ModelID
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Result is a successful provider reply.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is the external completion service. Implementations must honour ctx cancellation.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}
