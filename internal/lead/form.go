package lead

import (
	"fmt"
	"strings"

	"lead-dispatch/internal/common/validation"
)

// Form is the raw valuation form as submitted by the landing page. The other* fields
// only exist here; ParseForm folds them into the Lead.
type Form struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	City         string `json:"city"`
	OtherCity    string `json:"otherCity,omitempty"`
	Brand        string `json:"brand"`
	OtherBrand   string `json:"otherBrand,omitempty"`
	Model        string `json:"model"`
	OtherModel   string `json:"otherModel,omitempty"`
	PayoutMethod string `json:"payoutMethod"`
	CryptoToken  string `json:"cryptoToken,omitempty"`
	OtherToken   string `json:"otherToken,omitempty"`
	Source       string `json:"source,omitempty"`

	Tracking Tracking `json:"-"`
}

const phonePattern = `^\+?\d[\d\s\-()]{7,}$`

var formSchema = validation.MustCompile(map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"name", "phone", "email", "city", "brand", "model", "payoutMethod"},
	"properties": map[string]interface{}{
		"name":         map[string]interface{}{"type": "string", "minLength": 2, "maxLength": 120},
		"phone":        map[string]interface{}{"type": "string", "pattern": phonePattern},
		"email":        map[string]interface{}{"type": "string", "format": "email"},
		"city":         map[string]interface{}{"type": "string", "enum": withOther(Emirates)},
		"brand":        map[string]interface{}{"type": "string", "enum": withOther(Brands)},
		"model":        map[string]interface{}{"type": "string", "maxLength": 120},
		"payoutMethod": map[string]interface{}{"type": "string", "enum": []interface{}{"crypto", "cash"}},
		"source":       map[string]interface{}{"type": "string", "maxLength": 120},
	},
})

// ParseForm validates the raw form and resolves it into a Lead. Invalid input yields a
// *ValidationError; any other error means the form schema itself could not be evaluated.
func ParseForm(f Form) (Lead, error) {
	f = trimForm(f)

	verr := &ValidationError{}
	if err := validateSchema(f, verr); err != nil {
		return Lead{}, err
	}

	city := ChoiceOf(f.City, f.OtherCity)
	if city.IsOther() && city.Empty() {
		verr.Add("otherCity", "required when city is Other")
	}

	brand := ChoiceOf(f.Brand, f.OtherBrand)
	if brand.IsOther() && brand.Empty() {
		verr.Add("otherBrand", "required when brand is Other")
	}

	model := resolveModel(f, brand, verr)

	payout := PayoutMethod(f.PayoutMethod)
	var token string
	if payout == PayoutCrypto {
		token = resolveToken(f, verr)
	}

	if verr.HasErrors() {
		return Lead{}, verr
	}

	source := f.Source
	if source == "" {
		source = DefaultSource
	}

	return Lead{
		Name:         f.Name,
		Phone:        f.Phone,
		Email:        strings.ToLower(f.Email),
		City:         city.Resolve(),
		Brand:        brand.Resolve(),
		Model:        model.Resolve(),
		PayoutMethod: payout,
		CryptoToken:  token,
		Source:       source,
		Tracking:     f.Tracking,
	}, nil
}

// resolveModel applies the catalogue constraint for known brands. A free-text brand or
// an Other model selection resolves to otherModel, falling back to the typed model.
func resolveModel(f Form, brand Choice, verr *ValidationError) Choice {
	if brand.IsOther() || f.Model == OtherOption {
		text := f.OtherModel
		if text == "" && f.Model != OtherOption {
			text = f.Model
		}
		if text == "" {
			verr.Add("otherModel", "required when brand or model is Other")
		}
		return Other(text)
	}

	if f.Model == "" {
		verr.Add("model", "is required")
		return Known("")
	}
	if !brand.Empty() && !IsModelOf(brand.Resolve(), f.Model) {
		verr.Add("model", fmt.Sprintf("%q is not a %s model", f.Model, brand.Resolve()))
	}
	return Known(f.Model)
}

func resolveToken(f Form, verr *ValidationError) string {
	switch {
	case f.CryptoToken == "":
		verr.Add("cryptoToken", "required when payout method is crypto")
		return ""
	case f.CryptoToken == OtherOption:
		if f.OtherToken == "" {
			verr.Add("otherToken", "required when token is Other")
		}
		return Other(f.OtherToken).Resolve()
	case !contains(Tokens, f.CryptoToken):
		verr.Add("cryptoToken", fmt.Sprintf("%q is not a supported token", f.CryptoToken))
		return ""
	default:
		return f.CryptoToken
	}
}

func validateSchema(f Form, verr *ValidationError) error {
	result, err := formSchema.Validate(f)
	if err != nil {
		return fmt.Errorf("form schema: %w", err)
	}
	if result.Valid {
		return nil
	}

	for _, e := range result.Errors {
		verr.Add(e.Field, e.Message)
	}
	return verr
}

func trimForm(f Form) Form {
	for _, s := range []*string{
		&f.Name, &f.Phone, &f.Email, &f.City, &f.OtherCity, &f.Brand, &f.OtherBrand,
		&f.Model, &f.OtherModel, &f.PayoutMethod, &f.CryptoToken, &f.OtherToken, &f.Source,
	} {
		*s = strings.TrimSpace(*s)
	}
	f.PayoutMethod = strings.ToLower(f.PayoutMethod)
	return f
}

// FormFromMap reads a form out of loosely typed variables, e.g. Zeebe job variables.
// Tracking keys are read from the same map.
func FormFromMap(vars map[string]interface{}) Form {
	str := func(key string) string {
		if v, ok := vars[key].(string); ok {
			return v
		}
		return ""
	}
	return Form{
		Name:         str("name"),
		Phone:        str("phone"),
		Email:        str("email"),
		City:         str("city"),
		OtherCity:    str("otherCity"),
		Brand:        str("brand"),
		OtherBrand:   str("otherBrand"),
		Model:        str("model"),
		OtherModel:   str("otherModel"),
		PayoutMethod: str("payoutMethod"),
		CryptoToken:  str("cryptoToken"),
		OtherToken:   str("otherToken"),
		Source:       str("source"),
		Tracking: Tracking{
			UserAgent: str("userAgent"),
			IPAddress: str("ipAddress"),
			SessionID: str("sessionId"),
		},
	}
}
