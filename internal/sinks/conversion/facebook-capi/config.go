package facebookcapi

import (
	"strings"

	"lead-dispatch/internal/common/config"
)

type Config struct {
	PixelID        string
	AccessToken    string
	APIVersion     string
	TestEventCode  string
	BaseURL        string
	EventSourceURL string
	Value          float64
	Currency       string
}

func ConfigFrom(cfg config.FacebookConfig, conv config.ConversionConfig) Config {
	return Config{
		PixelID:        cfg.PixelID,
		AccessToken:    cfg.AccessToken,
		APIVersion:     cfg.APIVersion,
		TestEventCode:  cfg.TestEventCode,
		BaseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		EventSourceURL: cfg.EventSourceURL,
		Value:          conv.Value,
		Currency:       conv.Currency,
	}
}

func (c Config) missing() string {
	switch {
	case c.PixelID == "":
		return "pixel_id"
	case c.AccessToken == "":
		return "access_token"
	default:
		return ""
	}
}

func (c Config) endpoint() string {
	base, version := c.BaseURL, c.APIVersion
	if base == "" {
		base = "https://graph.facebook.com"
	}
	if version == "" {
		version = "v18.0"
	}
	return base + "/" + version + "/" + c.PixelID + "/events"
}
