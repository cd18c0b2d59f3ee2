package stapeevent

import (
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"
)

const eventName = "lead_submission"

type containerRequest struct {
	ClientName string  `json:"client_name"`
	Events     []event `json:"events"`
}

type event struct {
	Name            string      `json:"name"`
	TimestampMicros int64       `json:"timestamp_micros"`
	Params          eventParams `json:"params"`
}

type eventParams struct {
	LeadID          string  `json:"lead_id"`
	LeadName        string  `json:"lead_name"`
	LeadEmail       string  `json:"lead_email"`
	LeadPhone       string  `json:"lead_phone"`
	LeadCity        string  `json:"lead_city"`
	CarBrand        string  `json:"car_brand"`
	CarModel        string  `json:"car_model"`
	PayoutMethod    string  `json:"payout_method"`
	CryptoToken     string  `json:"crypto_token,omitempty"`
	Source          string  `json:"source"`
	UserAgent       string  `json:"user_agent,omitempty"`
	IPAddress       string  `json:"ip_address,omitempty"`
	SessionID       string  `json:"session_id,omitempty"`
	ConversionValue float64 `json:"conversion_value"`
	Currency        string  `json:"currency"`
}

func buildRequest(cfg Config, l lead.Lead, dc dispatch.DeliveryContext) containerRequest {
	return containerRequest{
		ClientName: cfg.ContainerDomain,
		Events: []event{{
			Name:            eventName,
			TimestampMicros: dc.SubmittedAt.UnixMicro(),
			Params: eventParams{
				LeadID:          dc.EventID,
				LeadName:        l.Name,
				LeadEmail:       l.Email,
				LeadPhone:       l.Phone,
				LeadCity:        l.City,
				CarBrand:        l.Brand,
				CarModel:        l.Model,
				PayoutMethod:    string(l.PayoutMethod),
				CryptoToken:     l.CryptoToken,
				Source:          l.Source,
				UserAgent:       l.Tracking.UserAgent,
				IPAddress:       l.Tracking.IPAddress,
				SessionID:       l.Tracking.SessionID,
				ConversionValue: cfg.Value,
				Currency:        cfg.Currency,
			},
		}},
	}
}
