package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChoiceOf(t *testing.T) {
	tests := []struct {
		name      string
		selected  string
		otherText string
		wantOther bool
		want      string
	}{
		{"known", "Dubai", "", false, "Dubai"},
		{"known ignores other text", "Sharjah", "Al Dhafra", false, "Sharjah"},
		{"other", "Other", " Al Dhafra ", true, "Al Dhafra"},
		{"other without text", "Other", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ChoiceOf(tt.selected, tt.otherText)
			assert.Equal(t, tt.wantOther, c.IsOther())
			assert.Equal(t, tt.want, c.Resolve())
		})
	}
}

func TestLead_Helpers(t *testing.T) {
	l := Lead{Name: "Ahmed Ali", Brand: "BMW", Model: "X5", PayoutMethod: PayoutCrypto}

	assert.Equal(t, "Ahmed", l.FirstName())
	assert.Equal(t, "BMW X5", l.CarTitle())
	assert.True(t, l.IsCrypto())
	assert.Equal(t, "Crypto", l.PayoutMethod.Label())
	assert.Equal(t, "Cash", PayoutCash.Label())
	assert.Equal(t, "BMW", l.Fields()["brand"])
}

func TestCatalog(t *testing.T) {
	for _, brand := range Brands {
		assert.NotEmpty(t, Models[brand], brand)
	}
	assert.True(t, IsModelOf("Porsche", "911"))
	assert.False(t, IsModelOf("Porsche", "X5"))
}
