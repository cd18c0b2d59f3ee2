package telegrammessage

import (
	"strings"
	"time"

	"lead-dispatch/internal/common/config"
)

type Config struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Location *time.Location
}

// ConfigFrom falls back to UTC when the configured zone cannot be loaded.
func ConfigFrom(cfg config.TelegramConfig) Config {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	return Config{
		BotToken: cfg.BotToken,
		ChatID:   cfg.ChatID,
		BaseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		Location: loc,
	}
}

func (c Config) missing() string {
	switch {
	case c.BotToken == "":
		return "bot_token"
	case c.ChatID == "":
		return "chat_id"
	default:
		return ""
	}
}

func (c Config) endpoint() string {
	base := c.BaseURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	return base + "/bot" + c.BotToken + "/sendMessage"
}
