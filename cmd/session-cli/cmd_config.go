package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"jan-server/services/session-api/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the environment configuration",
	Long:  `Load .env overlays and the environment, validate them and print the resolved settings.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

type configSummary struct {
	StoreBackend      string   `yaml:"store_backend"`
	LockBackend       string   `yaml:"lock_backend"`
	ProviderBaseURL   string   `yaml:"provider_base_url"`
	ProviderTimeout   string   `yaml:"provider_timeout"`
	DefaultModel      string   `yaml:"default_model"`
	ContextWindowSize int      `yaml:"context_window_size"`
	AuthEnabled       bool     `yaml:"auth_enabled"`
	PricedModels      []string `yaml:"priced_models"`
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	summary := configSummary{
		StoreBackend:      cfg.StoreBackend,
		LockBackend:       cfg.LockBackend,
		ProviderBaseURL:   cfg.ProviderBaseURL,
		ProviderTimeout:   cfg.ProviderTimeout.String(),
		DefaultModel:      cfg.DefaultModel,
		ContextWindowSize: cfg.ContextWindowSize,
		AuthEnabled:       cfg.AuthEnabled,
	}
	for model := range cfg.Models.Pricing() {
		summary.PricedModels = append(summary.PricedModels, string(model))
	}
	slices.Sort(summary.PricedModels)

	out, err := yaml.Marshal(summary)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
