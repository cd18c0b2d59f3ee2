package postgresinsert

import (
	"fmt"
	"regexp"

	"lead-dispatch/internal/common/config"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	Enabled bool
	Table   string
}

func ConfigFrom(cfg config.PostgresSink) Config {
	return Config{Enabled: cfg.Enabled, Table: cfg.Table}
}

func (c Config) Validate() error {
	if !identifier.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	return nil
}
