package salesalert

import "lead-dispatch/internal/common/config"

type Config struct {
	FromEmail string
	ToEmail   string
	SMSPhone  string
}

func ConfigFrom(cfg config.SalesAlertConfig) Config {
	return Config{FromEmail: cfg.FromEmail, ToEmail: cfg.ToEmail, SMSPhone: cfg.SMSPhone}
}

func (c Config) missing() string {
	switch {
	case c.ToEmail == "" && c.SMSPhone == "":
		return "to_email"
	case c.ToEmail != "" && c.FromEmail == "":
		return "from_email"
	default:
		return ""
	}
}
