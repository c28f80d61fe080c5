package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"jan-server/services/session-api/internal/domain/completion"
	"jan-server/services/session-api/internal/domain/conversation"
	"jan-server/services/session-api/internal/infrastructure/logger"
)

// ModelCatalog attaches optional pricing and upstream names to the supported models.
type ModelCatalog struct {
	pricing  completion.PriceTable
	upstream map[conversation.ModelID]string
}

type modelsDocument struct {
	Models map[string]modelEntry `yaml:"models"`
}

type modelEntry struct {
	Upstream        string `yaml:"upstream"`
	PromptPer1K     string `yaml:"prompt_per_1k"`
	CompletionPer1K string `yaml:"completion_per_1k"`
}

// EmptyModelCatalog has no pricing and maps every model to itself.
func EmptyModelCatalog() *ModelCatalog {
	return &ModelCatalog{
		pricing:  completion.PriceTable{},
		upstream: map[conversation.ModelID]string{},
	}
}

// LoadModelCatalog parses the yaml file at path. A missing file yields an empty catalog.
func LoadModelCatalog(path string) (*ModelCatalog, error) {
	if strings.TrimSpace(path) == "" {
		return EmptyModelCatalog(), nil
	}

	log := logger.GetLogger()
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("path", cleanPath).Msg("models config not found, pricing disabled")
			return EmptyModelCatalog(), nil
		}
		return nil, fmt.Errorf("read models config %q: %w", cleanPath, err)
	}
	return ParseModelCatalog(data)
}

// ParseModelCatalog parses a models document. Every key must name a supported model.
func ParseModelCatalog(data []byte) (*ModelCatalog, error) {
	var doc modelsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse models config: %w", err)
	}

	catalog := EmptyModelCatalog()
	for rawID, entry := range doc.Models {
		id, err := conversation.ParseModelID(rawID)
		if err != nil {
			return nil, fmt.Errorf("models.%s: %w", rawID, err)
		}
		if upstream := strings.TrimSpace(entry.Upstream); upstream != "" {
			catalog.upstream[id] = upstream
		}
		if entry.PromptPer1K == "" && entry.CompletionPer1K == "" {
			continue
		}
		prompt, err := parsePrice(entry.PromptPer1K)
		if err != nil {
			return nil, fmt.Errorf("models.%s.prompt_per_1k: %w", rawID, err)
		}
		completionPrice, err := parsePrice(entry.CompletionPer1K)
		if err != nil {
			return nil, fmt.Errorf("models.%s.completion_per_1k: %w", rawID, err)
		}
		catalog.pricing[id] = completion.ModelPricing{PromptPer1K: prompt, CompletionPer1K: completionPrice}
	}
	return catalog, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if price.IsNegative() {
		return decimal.Zero, errors.New("price must not be negative")
	}
	return price, nil
}

// Pricing returns the per-model price table.
func (c *ModelCatalog) Pricing() completion.PriceTable {
	if c == nil {
		return completion.PriceTable{}
	}
	return c.pricing
}

// UpstreamName returns the model name sent to the provider for id.
func (c *ModelCatalog) UpstreamName(id conversation.ModelID) string {
	if c != nil {
		if name, ok := c.upstream[id]; ok {
			return name
		}
	}
	return string(id)
}
