package stapeevent

import "lead-dispatch/internal/common/config"

type Config struct {
	Endpoint        string
	APIKey          string
	ContainerDomain string
	Value           float64
	Currency        string
}

func ConfigFrom(cfg config.StapeConfig, conv config.ConversionConfig) Config {
	return Config{
		Endpoint:        cfg.Endpoint,
		APIKey:          cfg.APIKey,
		ContainerDomain: cfg.ContainerDomain,
		Value:           conv.Value,
		Currency:        conv.Currency,
	}
}

func (c Config) missing() string {
	switch {
	case c.Endpoint == "":
		return "endpoint"
	case c.APIKey == "":
		return "api_key"
	default:
		return ""
	}
}
