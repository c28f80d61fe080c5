package domain

import (
	"github.com/google/wire"

	"jan-server/services/session-api/internal/config"
	"jan-server/services/session-api/internal/domain/completion"
	"jan-server/services/session-api/internal/domain/conversation"
)

// ServiceProvider provides all domain services
var ServiceProvider = wire.NewSet(
	// Conversation domain
	ProvideConversationDefaults,
	conversation.NewConversationService,

	// Completion domain
	ProvideCompletionParams,
	ProvidePricing,
	completion.NewOrchestrator,
)

func ProvideConversationDefaults(cfg *config.Config) (conversation.Defaults, error) {
	model, err := conversation.ParseModelID(cfg.DefaultModel)
	if err != nil {
		return conversation.Defaults{}, err
	}
	return conversation.Defaults{Model: model}, nil
}

func ProvideCompletionParams(cfg *config.Config) completion.Params {
	return completion.Params{
		MaxTokens:   cfg.CompletionMaxTokens,
		Temperature: cfg.CompletionTemperature,
		Timeout:     cfg.ProviderTimeout,
		WindowSize:  cfg.ContextWindowSize,
	}
}

func ProvidePricing(cfg *config.Config) completion.Pricing {
	if cfg.Models == nil {
		return completion.PriceTable{}
	}
	return cfg.Models.Pricing()
}
