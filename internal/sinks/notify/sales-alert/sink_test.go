package salesalert

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"unicode/utf8"

	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockEmail struct {
	mock.Mock
}

func (m *MockEmail) SendText(ctx context.Context, from, to, subject, body string) (string, error) {
	args := m.Called(ctx, from, to, subject, body)
	return args.String(0), args.Error(1)
}

type MockSMS struct {
	mock.Mock
}

func (m *MockSMS) SendSMS(ctx context.Context, phone, message string) (string, error) {
	args := m.Called(ctx, phone, message)
	return args.String(0), args.Error(1)
}

func testLead() lead.Lead {
	return lead.Lead{
		Name:         "Ahmed Ali",
		Phone:        "+971501234567",
		Email:        "a@x.com",
		City:         "Dubai",
		Brand:        "BMW",
		Model:        "X5",
		PayoutMethod: lead.PayoutCrypto,
		CryptoToken:  "USDT",
		Source:       "hero_form",
	}
}

func TestDeliver_EmailAndSMS(t *testing.T) {
	email := new(MockEmail)
	sms := new(MockSMS)
	email.On("SendText", mock.Anything, "leads@cars-vault.com", "sales@cars-vault.com",
		"New Crypto lead: BMW X5 (Dubai)", mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "Lead ID: abc-123")
		})).Return("ses-1", nil).Once()
	sms.On("SendSMS", mock.Anything, "+971500000000", mock.AnythingOfType("string")).Return("sns-1", nil).Once()

	s := New(Config{FromEmail: "leads@cars-vault.com", ToEmail: "sales@cars-vault.com", SMSPhone: "+971500000000"},
		email, sms, logger.NewTestLogger(t))
	outcome := s.Deliver(context.Background(), testLead(), dispatch.DeliveryContext{ExternalID: "abc-123"})

	assert.True(t, outcome.Success)
	assert.Equal(t, "ses-1", outcome.ExternalID)
	email.AssertExpectations(t)
	sms.AssertExpectations(t)
}

func TestDeliver_SMSFailure(t *testing.T) {
	sms := new(MockSMS)
	sms.On("SendSMS", mock.Anything, mock.Anything, mock.Anything).Return("", stderrors.New("throttled"))

	s := New(Config{SMSPhone: "+971500000000"}, nil, sms, nil)
	outcome := s.Deliver(context.Background(), testLead(), dispatch.DeliveryContext{})

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Detail, "sms: throttled")
}

func TestDeliver_NotConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no recipient", Config{FromEmail: "leads@cars-vault.com"}},
		{"no sender", Config{ToEmail: "sales@cars-vault.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := New(tt.cfg, new(MockEmail), nil, nil).Deliver(context.Background(), testLead(), dispatch.DeliveryContext{})
			assert.True(t, outcome.Skipped)
		})
	}
}

func TestSMS_Truncated(t *testing.T) {
	l := testLead()
	l.Name = strings.Repeat("A", 200)
	assert.Len(t, SMS(l), 160)
}

func TestSMS_TruncatesOnRuneBoundary(t *testing.T) {
	l := testLead()
	l.Name = strings.Repeat("أحمد ", 40)

	msg := SMS(l)

	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, 160, utf8.RuneCountInString(msg))
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestSink_DoesNotFlagNotified(t *testing.T) {
	var s dispatch.Sink = New(Config{ToEmail: "sales@example.com"}, nil, nil, nil)
	_, ok := s.(dispatch.NotifiedFlagger)
	assert.False(t, ok)
}
