package supabaseinsert

import (
	"strings"

	"lead-dispatch/internal/common/config"
)

type Config struct {
	URL    string
	APIKey string
	Table  string
}

func ConfigFrom(cfg config.SupabaseConfig) Config {
	return Config{
		URL:    strings.TrimRight(cfg.URL, "/"),
		APIKey: cfg.APIKey,
		Table:  cfg.Table,
	}
}

// missing names the first unset credential, or "".
func (c Config) missing() string {
	switch {
	case c.URL == "":
		return "url"
	case c.APIKey == "":
		return "api_key"
	default:
		return ""
	}
}

func (c Config) endpoint() string {
	table := c.Table
	if table == "" {
		table = "leads"
	}
	return c.URL + "/rest/v1/" + table
}
