package facebookcapi

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"
)

const (
	eventName       = "Lead"
	actionSource    = "website"
	contentCategory = "Car Valuation"
	country         = "ae"
)

type eventRequest struct {
	Data          []event `json:"data"`
	TestEventCode string  `json:"test_event_code,omitempty"`
	AccessToken   string  `json:"access_token"`
}

type event struct {
	EventName      string     `json:"event_name"`
	EventTime      int64      `json:"event_time"`
	EventID        string     `json:"event_id"`
	EventSourceURL string     `json:"event_source_url,omitempty"`
	ActionSource   string     `json:"action_source"`
	UserData       userData   `json:"user_data"`
	CustomData     customData `json:"custom_data"`
}

// userData carries only hashed identifiers, plus the IP and user agent which the
// API requires in clear text.
type userData struct {
	Em              []string `json:"em"`
	Ph              []string `json:"ph"`
	Fn              []string `json:"fn"`
	Ln              []string `json:"ln,omitempty"`
	Ct              []string `json:"ct"`
	Country         []string `json:"country"`
	ClientIPAddress string   `json:"client_ip_address,omitempty"`
	ClientUserAgent string   `json:"client_user_agent,omitempty"`
}

type customData struct {
	ContentName     string  `json:"content_name"`
	ContentCategory string  `json:"content_category"`
	ContentType     string  `json:"content_type"`
	Value           float64 `json:"value"`
	Currency        string  `json:"currency"`
	Brand           string  `json:"brand"`
	Model           string  `json:"model"`
	PayoutMethod    string  `json:"payout_method"`
	CryptoToken     string  `json:"crypto_token,omitempty"`
	Source          string  `json:"source"`
	SessionID       string  `json:"session_id,omitempty"`
}

type eventResponse struct {
	EventsReceived int    `json:"events_received"`
	FBTraceID      string `json:"fbtrace_id"`
}

// Hash is the hex SHA-256 of the lower-cased, trimmed value.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(sum[:])
}

// HashPhone hashes the digits only, country code included.
func HashPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	return Hash(digits)
}

func hashedList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return []string{Hash(value)}
}

func lastName(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return ""
	}
	return fields[len(fields)-1]
}

func buildRequest(cfg Config, l lead.Lead, dc dispatch.DeliveryContext) eventRequest {
	return eventRequest{
		Data: []event{{
			EventName:      eventName,
			EventTime:      dc.SubmittedAt.Unix(),
			EventID:        dc.EventID,
			EventSourceURL: cfg.EventSourceURL,
			ActionSource:   actionSource,
			UserData: userData{
				Em:              hashedList(l.Email),
				Ph:              []string{HashPhone(l.Phone)},
				Fn:              hashedList(l.FirstName()),
				Ln:              hashedList(lastName(l.Name)),
				Ct:              hashedList(strings.ReplaceAll(l.City, " ", "")),
				Country:         []string{Hash(country)},
				ClientIPAddress: l.Tracking.IPAddress,
				ClientUserAgent: l.Tracking.UserAgent,
			},
			CustomData: customData{
				ContentName:     l.CarTitle(),
				ContentCategory: contentCategory,
				ContentType:     "lead",
				Value:           cfg.Value,
				Currency:        cfg.Currency,
				Brand:           l.Brand,
				Model:           l.Model,
				PayoutMethod:    string(l.PayoutMethod),
				CryptoToken:     l.CryptoToken,
				Source:          l.Source,
				SessionID:       l.Tracking.SessionID,
			},
		}},
		TestEventCode: cfg.TestEventCode,
		AccessToken:   cfg.AccessToken,
	}
}
