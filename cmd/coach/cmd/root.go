// Package cmd holds the coach command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/chris/coach/config"
	"github.com/chris/coach/internal/agent"
	"github.com/chris/coach/internal/db"
	"github.com/chris/coach/internal/llm"
	"github.com/chris/coach/internal/localtime"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "coach",
	Short:         "SMS life coach: plans tomorrow with you and nudges you when you forget",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads settings and applies the process-wide timezone default.
func loadConfig() *config.Config {
	cfg := config.Load()
	localtime.Fallback = cfg.DefaultTimezone
	return cfg
}

func openDB(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

func newAgent(cfg *config.Config, database *db.DB) (*agent.Agent, error) {
	apiKey := cfg.AnthropicKey
	if cfg.LLMProvider == "openai" {
		apiKey = cfg.OpenAIKey
	}

	client, err := llm.NewClient(llm.ProviderConfig{
		Provider:  cfg.LLMProvider,
		APIKey:    apiKey,
		AuthToken: cfg.AnthropicToken,
		Model:     cfg.LLMModel,
		BaseURL:   cfg.OllamaBaseURL,
		Timeout:   cfg.LLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}
	return agent.New(database, client, cfg.MaxContextTokens), nil
}
