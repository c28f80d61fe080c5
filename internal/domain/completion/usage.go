package completion

import (
	"github.com/shopspring/decimal"

	"jan-server/services/session-api/internal/domain/conversation"
)

// Usage summarizes one successful provider call.
type Usage struct {
	Tokens           int                  `json:"tokens"`
	ModelID          conversation.ModelID `json:"model"`
	PromptTokens     int                  `json:"prompt_tokens"`
	CompletionTokens int                  `json:"completion_tokens"`
	EstimatedCostUSD *decimal.Decimal     `json:"estimated_cost_usd,omitempty"`
}

// ModelPricing is the USD price per 1000 tokens.
type ModelPricing struct {
	PromptPer1K     decimal.Decimal
	CompletionPer1K decimal.Decimal
}

// Pricing resolves per-model prices. Models without a price produce no cost estimate.
type Pricing interface {
	PriceFor(model conversation.ModelID) (ModelPricing, bool)
}

// PriceTable is a static Pricing.
type PriceTable map[conversation.ModelID]ModelPricing

func (t PriceTable) PriceFor(model conversation.ModelID) (ModelPricing, bool) {
	p, ok := t[model]
	return p, ok
}

var thousand = decimal.NewFromInt(1000)

// Estimate returns the cost of the given token counts, rounded to 6 decimal places.
func (p ModelPricing) Estimate(promptTokens, completionTokens int) decimal.Decimal {
	prompt := decimal.NewFromInt(int64(promptTokens)).Mul(p.PromptPer1K)
	completion := decimal.NewFromInt(int64(completionTokens)).Mul(p.CompletionPer1K)
	return prompt.Add(completion).Div(thousand).Round(6)
}

func newUsage(model conversation.ModelID, result *Result, pricing Pricing) Usage {
	usage := Usage{
		Tokens:           result.TotalTokens,
		ModelID:          model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}
	if pricing == nil {
		return usage
	}
	if price, ok := pricing.PriceFor(model); ok {
		cost := price.Estimate(result.PromptTokens, result.CompletionTokens)
		usage.EstimatedCostUSD = &cost
	}
	return usage
}
