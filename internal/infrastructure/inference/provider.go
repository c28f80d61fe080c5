package inference

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"

	"jan-server/services/session-api/internal/domain/completion"
	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/infrastructure/metrics"
	"jan-server/services/session-api/internal/infrastructure/observability"
	"jan-server/services/session-api/internal/utils/functional"
	"jan-server/services/session-api/internal/utils/httpclients"
	"jan-server/services/session-api/internal/utils/httpclients/chat"
	"jan-server/services/session-api/internal/utils/platformerrors"
)

const providerName = "openai-compatible"

// ModelNames maps a supported model to the name the upstream expects.
type ModelNames interface {
	UpstreamName(id conversation.ModelID) string
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// InferenceProvider adapts an OpenAI-compatible endpoint to completion.Provider.
type InferenceProvider struct {
	client      *chat.ChatCompletionClient
	apiKey      string
	names       ModelNames
	serviceName string
}

var _ completion.Provider = (*InferenceProvider)(nil)

func NewInferenceProvider(cfg Config, names ModelNames, serviceName string, log zerolog.Logger) *InferenceProvider {
	// The orchestrator owns the per-call deadline; the client timeout only stops runaway sockets.
	restyClient := httpclients.NewClient(providerName, 2*cfg.Timeout, log)
	return &InferenceProvider{
		client:      chat.NewChatCompletionClient(restyClient, providerName, cfg.BaseURL),
		apiKey:      cfg.APIKey,
		names:       names,
		serviceName: serviceName,
	}
}

var errNoChoices = errors.New("provider response contained no choices")

func (p *InferenceProvider) Complete(ctx context.Context, req completion.Request) (*completion.Result, error) {
	ctx, span := observability.StartSpan(ctx, p.serviceName, "InferenceProvider.Complete")
	defer span.End()

	upstream := p.names.UpstreamName(req.Model)
	observability.AddSpanAttributes(ctx,
		attribute.String("llm.model", string(req.Model)),
		attribute.String("llm.upstream_model", upstream),
		attribute.Int("llm.messages", len(req.Messages)),
	)

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, p.apiKey, openai.ChatCompletionRequest{
		Model:       upstream,
		Messages:    functional.Map(req.Messages, toOpenAIMessage),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	metrics.ObserveProviderLatency(string(req.Model), time.Since(start))
	if err != nil {
		metrics.RecordProviderError(string(req.Model), classify(ctx, err))
		observability.RecordError(ctx, err)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		metrics.RecordProviderError(string(req.Model), "malformed")
		observability.RecordError(ctx, errNoChoices)
		return nil, errNoChoices
	}

	metrics.RecordTokens(string(req.Model), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	observability.AddSpanAttributes(ctx, attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))

	return &completion.Result{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func toOpenAIMessage(m completion.Message) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
}

func classify(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	var perr *platformerrors.PlatformError
	if errors.As(err, &perr) {
		if _, ok := perr.Context["status"]; ok {
			return "status"
		}
	}
	return "transport"
}
