package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Token          string     `env:"TOKEN"`
	AllowedUsers   []int64    `env:"ALLOWED_USERS"`
	DBPath         string     `env:"DB_PATH"          envDefault:"db.sqlite"`
	OpenAIAPIKey   string     `env:"OPENAI_API_KEY"`
	SpeechVoice    string     `env:"SPEECH_VOICE"     envDefault:"alloy"`
	HTTPAddr       string     `env:"HTTP_ADDR"        envDefault:":8080"`
	PublicBaseURL  string     `env:"PUBLIC_BASE_URL"  envDefault:"http://localhost:8080"`
	RegistryPath   string     `env:"REGISTRY_PATH"`
	ReadwiseAPIURL string     `env:"READWISE_API_URL" envDefault:"https://readwise.io"`
	AutoSyncSpec   string     `env:"AUTO_SYNC_SPEC"   envDefault:"30 3 * * *"`
	LogLevel       slog.Level `env:"LOG_LEVEL"        envDefault:"info"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")

	return cfg, nil
}

// BotEnabled reports whether a Telegram token is configured.
func (c Config) BotEnabled() bool {
	return c.Token != ""
}

// OpenAIEnabled reports whether chat and speech synthesis can be used.
func (c Config) OpenAIEnabled() bool {
	return c.OpenAIAPIKey != ""
}
