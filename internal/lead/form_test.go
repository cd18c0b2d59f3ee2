package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() Form {
	return Form{
		Name:         "Ahmed Ali",
		Phone:        "+971501234567",
		Email:        "a@x.com",
		City:         "Dubai",
		Brand:        "BMW",
		Model:        "X5",
		PayoutMethod: "crypto",
		CryptoToken:  "USDT",
		Source:       "hero_form",
	}
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	verr, ok := err.(*ValidationError)
	require.True(t, ok, "expected *ValidationError, got %T", err)
	names := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		names[i] = f.Field
	}
	return names
}

// ==========================
// Resolution
// ==========================

func TestParseForm_Valid(t *testing.T) {
	l, err := ParseForm(validForm())
	require.NoError(t, err)

	assert.Equal(t, Lead{
		Name:         "Ahmed Ali",
		Phone:        "+971501234567",
		Email:        "a@x.com",
		City:         "Dubai",
		Brand:        "BMW",
		Model:        "X5",
		PayoutMethod: PayoutCrypto,
		CryptoToken:  "USDT",
		Source:       "hero_form",
	}, l)
}

func TestParseForm_OtherCityResolved(t *testing.T) {
	f := validForm()
	f.City = "Other"
	f.OtherCity = "Al Dhafra"

	l, err := ParseForm(f)
	require.NoError(t, err)
	assert.Equal(t, "Al Dhafra", l.City)
}

func TestParseForm_OtherResolution(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Form)
		wantBrand string
		wantModel string
		wantToken string
	}{
		{
			name: "other brand takes other model",
			mutate: func(f *Form) {
				f.Brand, f.OtherBrand = "Other", "Bugatti"
				f.Model, f.OtherModel = "", "Chiron"
			},
			wantBrand: "Bugatti",
			wantModel: "Chiron",
			wantToken: "USDT",
		},
		{
			name: "other brand falls back to typed model",
			mutate: func(f *Form) {
				f.Brand, f.OtherBrand = "Other", "Pagani"
				f.Model = "Huayra"
			},
			wantBrand: "Pagani",
			wantModel: "Huayra",
			wantToken: "USDT",
		},
		{
			name: "known brand with other model",
			mutate: func(f *Form) {
				f.Model, f.OtherModel = "Other", "M8 Competition"
			},
			wantBrand: "BMW",
			wantModel: "M8 Competition",
			wantToken: "USDT",
		},
		{
			name: "other token",
			mutate: func(f *Form) {
				f.CryptoToken, f.OtherToken = "Other", "DOGE"
			},
			wantBrand: "BMW",
			wantModel: "X5",
			wantToken: "DOGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)

			l, err := ParseForm(f)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBrand, l.Brand)
			assert.Equal(t, tt.wantModel, l.Model)
			assert.Equal(t, tt.wantToken, l.CryptoToken)
			assert.NotEqual(t, OtherOption, l.City)
			assert.NotEqual(t, OtherOption, l.Brand)
			assert.NotEqual(t, OtherOption, l.Model)
		})
	}
}

func TestParseForm_CashDropsToken(t *testing.T) {
	f := validForm()
	f.PayoutMethod = "cash"
	f.CryptoToken = "BTC"

	l, err := ParseForm(f)
	require.NoError(t, err)
	assert.Equal(t, PayoutCash, l.PayoutMethod)
	assert.Empty(t, l.CryptoToken)
}

func TestParseForm_Normalization(t *testing.T) {
	f := validForm()
	f.Name = "  Sara Khan "
	f.Email = " Sara@Example.COM "
	f.PayoutMethod = "Crypto"
	f.Source = ""

	l, err := ParseForm(f)
	require.NoError(t, err)
	assert.Equal(t, "Sara Khan", l.Name)
	assert.Equal(t, "sara@example.com", l.Email)
	assert.Equal(t, PayoutCrypto, l.PayoutMethod)
	assert.Equal(t, DefaultSource, l.Source)
}

// ==========================
// Rejections
// ==========================

func TestParseForm_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Form)
		wantField string
	}{
		{"short name", func(f *Form) { f.Name = "A" }, "name"},
		{"bad phone", func(f *Form) { f.Phone = "12ab" }, "phone"},
		{"bad email", func(f *Form) { f.Email = "not-an-email" }, "email"},
		{"unknown city", func(f *Form) { f.City = "Doha" }, "city"},
		{"other city without text", func(f *Form) { f.City = "Other" }, "otherCity"},
		{"unknown brand", func(f *Form) { f.Brand = "Skoda" }, "brand"},
		{"other brand without text", func(f *Form) { f.Brand = "Other" }, "otherBrand"},
		{"model not of brand", func(f *Form) { f.Model = "Cayenne" }, "model"},
		{"other model without text", func(f *Form) { f.Model = "Other" }, "otherModel"},
		{"bad payout", func(f *Form) { f.PayoutMethod = "card" }, "payoutMethod"},
		{"crypto without token", func(f *Form) { f.CryptoToken = "" }, "cryptoToken"},
		{"unsupported token", func(f *Form) { f.CryptoToken = "DOGE" }, "cryptoToken"},
		{"other token without text", func(f *Form) { f.CryptoToken = "Other" }, "otherToken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)

			_, err := ParseForm(f)
			require.Error(t, err)
			assert.Contains(t, fieldNames(t, err), tt.wantField)
		})
	}
}

func TestParseForm_MissingRequired(t *testing.T) {
	_, err := ParseForm(Form{})
	require.Error(t, err)

	names := fieldNames(t, err)
	for _, field := range []string{"name", "phone", "email", "city", "brand", "payoutMethod"} {
		assert.Contains(t, names, field)
	}
}

func TestValidationError_Standard(t *testing.T) {
	verr := &ValidationError{}
	verr.Add("phone", "does not match pattern")

	stdErr := verr.Standard()
	assert.Equal(t, "VALIDATION_FAILURE", string(stdErr.Code))
	assert.Contains(t, stdErr.Details, "phone")
	assert.False(t, stdErr.Retryable)
}

func TestFormFromMap(t *testing.T) {
	f := FormFromMap(map[string]interface{}{
		"name":         "Ahmed Ali",
		"city":         "Other",
		"otherCity":    "Al Dhafra",
		"payoutMethod": "cash",
		"userAgent":    "Mozilla/5.0",
		"sessionId":    "sess-1",
		"ignored":      42,
	})

	assert.Equal(t, "Ahmed Ali", f.Name)
	assert.Equal(t, "Al Dhafra", f.OtherCity)
	assert.Equal(t, "Mozilla/5.0", f.Tracking.UserAgent)
	assert.Equal(t, "sess-1", f.Tracking.SessionID)
	assert.Empty(t, f.Phone)
}
