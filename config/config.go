package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LLMProvider      string // anthropic, openai, ollama
	AnthropicKey     string // API key (X-Api-Key header)
	AnthropicToken   string // OAuth token (Authorization: Bearer header)
	OpenAIKey        string
	LLMModel         string
	OllamaBaseURL    string
	LLMTimeout       time.Duration
	MaxContextTokens int

	DatabasePath string
	HTTPAddr     string

	SurgeAccountID     string
	SurgeAPIKey        string
	SurgeWebhookSecret string
	SMSTimeout         time.Duration

	CronSecret       string
	NudgeCron        string // empty: rely on the external trigger
	NudgeConcurrency int
	DefaultTimezone  string
	HistoryLimit     int
	TurnTimeout      time.Duration

	DiscordToken     string
	DiscordChannelID string
	DiscordAdminID   string
}

// ConfigDir is where an installed service keeps its settings.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".coach")
}

func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config")
}

// Load reads the environment, then ./.env, then ~/.coach/config. Earlier
// sources win.
func Load() *Config {
	_ = godotenv.Load()             // ignore error if no .env
	_ = godotenv.Load(ConfigFile()) // or no installed config

	return &Config{
		LLMProvider:      envOr("LLM_PROVIDER", "anthropic"),
		AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicToken:   os.Getenv("ANTHROPIC_AUTH_TOKEN"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		LLMModel:         os.Getenv("LLM_MODEL"),
		OllamaBaseURL:    envOr("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		LLMTimeout:       envDuration("LLM_TIMEOUT", 60*time.Second),
		MaxContextTokens: envInt("MAX_CONTEXT_TOKENS", 16000),

		DatabasePath: envOr("DATABASE_PATH", "./coach.db"),
		HTTPAddr:     envOr("HTTP_ADDR", ":8080"),

		SurgeAccountID:     os.Getenv("SURGE_ACCOUNT_ID"),
		SurgeAPIKey:        os.Getenv("SURGE_API_KEY"),
		SurgeWebhookSecret: os.Getenv("SURGE_WEBHOOK_SECRET"),
		SMSTimeout:         envDuration("SMS_TIMEOUT", 15*time.Second),

		CronSecret:       os.Getenv("CRON_SECRET"),
		NudgeCron:        os.Getenv("NUDGE_CRON"),
		NudgeConcurrency: envInt("NUDGE_CONCURRENCY", 4),
		DefaultTimezone:  envOr("DEFAULT_TIMEZONE", "America/Chicago"),
		HistoryLimit:     envInt("HISTORY_LIMIT", 20),
		TurnTimeout:      envDuration("TURN_TIMEOUT", 2*time.Minute),

		DiscordToken:     os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_ADMIN_CHANNEL_ID"),
		DiscordAdminID:   os.Getenv("DISCORD_ADMIN_USER_ID"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
