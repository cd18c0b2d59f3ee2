package supabaseinsert

import (
	"time"

	"lead-dispatch/internal/lead"
)

// Row is the leads table row as the REST API expects it.
type Row struct {
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Email        string  `json:"email"`
	City         string  `json:"city"`
	PayoutMethod string  `json:"payout_method"`
	CryptoToken  *string `json:"crypto_token"`
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	Source       string  `json:"source"`
	TelegramSent bool    `json:"telegram_sent"`
}

func NewRow(l lead.Lead) Row {
	row := Row{
		Name:         l.Name,
		Phone:        l.Phone,
		Email:        l.Email,
		City:         l.City,
		PayoutMethod: l.PayoutMethod.Label(),
		Brand:        l.Brand,
		Model:        l.Model,
		Source:       l.Source,
	}
	if l.IsCrypto() && l.CryptoToken != "" {
		token := l.CryptoToken
		row.CryptoToken = &token
	}
	return row
}

type notifiedPatch struct {
	TelegramSent   bool      `json:"telegram_sent"`
	TelegramSentAt time.Time `json:"telegram_sent_at"`
}
