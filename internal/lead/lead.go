// Package lead defines the normalized lead record handed to the dispatch pipeline and
// the validator that builds it from raw landing-page form values.
package lead

import "strings"

// PayoutMethod is how the seller wants to be paid.
type PayoutMethod string

const (
	PayoutCrypto PayoutMethod = "crypto"
	PayoutCash   PayoutMethod = "cash"
)

// Label is the display form used by row stores and chat messages.
func (p PayoutMethod) Label() string {
	if p == PayoutCrypto {
		return "Crypto"
	}
	return "Cash"
}

// DefaultSource is used when the form variant did not tag itself.
const DefaultSource = "website"

// Tracking is attached by the caller, never typed by the user.
type Tracking struct {
	UserAgent string `json:"userAgent,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Lead is a validated submission with every "Other" selection already resolved.
// It is passed by value and never modified after ParseForm returns it.
type Lead struct {
	Name         string       `json:"name"`
	Phone        string       `json:"phone"`
	Email        string       `json:"email"`
	City         string       `json:"city"`
	Brand        string       `json:"brand"`
	Model        string       `json:"model"`
	PayoutMethod PayoutMethod `json:"payoutMethod"`
	CryptoToken  string       `json:"cryptoToken,omitempty"`
	Source       string       `json:"source"`
	Tracking     Tracking     `json:"tracking"`
}

func (l Lead) IsCrypto() bool {
	return l.PayoutMethod == PayoutCrypto
}

// FirstName is the first word of the name, used where an API wants a given name.
func (l Lead) FirstName() string {
	if f := strings.Fields(l.Name); len(f) > 0 {
		return f[0]
	}
	return ""
}

// CarTitle is "<brand> <model>".
func (l Lead) CarTitle() string {
	return strings.TrimSpace(l.Brand + " " + l.Model)
}

// Fields is the full payload as log fields, enough to replay a delivery by hand.
func (l Lead) Fields() map[string]interface{} {
	return map[string]interface{}{
		"name":         l.Name,
		"phone":        l.Phone,
		"email":        l.Email,
		"city":         l.City,
		"brand":        l.Brand,
		"model":        l.Model,
		"payoutMethod": string(l.PayoutMethod),
		"cryptoToken":  l.CryptoToken,
		"source":       l.Source,
		"userAgent":    l.Tracking.UserAgent,
		"ipAddress":    l.Tracking.IPAddress,
		"sessionId":    l.Tracking.SessionID,
	}
}
