// Package pixel builds the client-side conversion signals fired by the thank-you page
// and emits them through whatever tag manager the caller provides.
package pixel

import (
	"strings"

	"lead-dispatch/internal/lead"
)

// Tag manager globals the landing page exposes.
const (
	ManagerFacebook = "fbq"
	ManagerGoogle   = "gtag"
)

const (
	EventLead       = "Lead"
	EventConversion = "conversion"

	// AdsSendTo is the Google Ads conversion action for a submitted lead.
	AdsSendTo = "AW-17534484313/tvOhCPa376sbENn-i6lB"
)

// Event is one call the page makes on a tag manager global.
type Event struct {
	Manager string                 `json:"manager"`
	Command string                 `json:"command"`
	Name    string                 `json:"name"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Conversion is the value attributed to a lead.
type Conversion struct {
	Value      float64
	Currency   string
	CryptoOnly bool
}

// BuildLeadEvent returns the Lead event for l. ok is false when l does not count as a
// conversion.
func BuildLeadEvent(l lead.Lead, leadID string, conv Conversion) (ev Event, ok bool) {
	if conv.CryptoOnly && !l.IsCrypto() {
		return Event{}, false
	}

	params := map[string]interface{}{
		"content_name":     l.CarTitle() + " " + l.PayoutMethod.Label() + " Valuation Lead",
		"content_category": l.PayoutMethod.Label() + " Car Valuation",
		"value":            conv.Value,
		"currency":         strings.ToUpper(conv.Currency),
		"payout_method":    string(l.PayoutMethod),
	}
	if l.CryptoToken != "" {
		params["crypto_token"] = l.CryptoToken
	}
	if leadID != "" {
		params["lead_id"] = leadID
	}

	return Event{Manager: ManagerFacebook, Command: "track", Name: EventLead, Params: params}, true
}

// BuildAdsConversion returns the Google Ads conversion event for a lead.
func BuildAdsConversion(leadID string, conv Conversion) Event {
	params := map[string]interface{}{
		"send_to":  AdsSendTo,
		"value":    conv.Value,
		"currency": strings.ToUpper(conv.Currency),
	}
	if leadID != "" {
		params["transaction_id"] = leadID
	}
	return Event{Manager: ManagerGoogle, Command: "event", Name: EventConversion, Params: params}
}

// BuildConversionEvents is every signal the thank-you page fires for a lead, or nil.
func BuildConversionEvents(l lead.Lead, leadID string, conv Conversion) []Event {
	ev, ok := BuildLeadEvent(l, leadID, conv)
	if !ok {
		return nil
	}
	return []Event{ev, BuildAdsConversion(leadID, conv)}
}
