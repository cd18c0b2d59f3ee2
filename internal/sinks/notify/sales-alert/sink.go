package salesalert

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"lead-dispatch/internal/common/errors"
	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"
)

const Name = "sales_alert"

// EmailSender is satisfied by aws.SESClient.
type EmailSender interface {
	SendText(ctx context.Context, from, to, subject, body string) (string, error)
}

// SMSSender is satisfied by aws.SNSClient.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// Sink e-mails the sales inbox through SES and optionally texts the on-call phone
// through SNS.
type Sink struct {
	config Config
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
}

func New(cfg Config, email EmailSender, sms SMSSender, log logger.Logger) *Sink {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Sink{config: cfg, email: email, sms: sms, logger: log}
}

func (s *Sink) Name() string          { return Name }
func (s *Sink) Stage() dispatch.Stage { return dispatch.StageNotify }
func (s *Sink) Target() string        { return "ses:" + s.config.ToEmail + " sns:" + s.config.SMSPhone }

func (s *Sink) Deliver(ctx context.Context, l lead.Lead, dc dispatch.DeliveryContext) dispatch.Outcome {
	if setting := s.config.missing(); setting != "" {
		return dispatch.Skip(Name, setting)
	}

	var failures []string
	var messageID string

	if s.config.ToEmail != "" {
		if s.email == nil {
			return dispatch.Skip(Name, "ses_client")
		}
		id, err := s.email.SendText(ctx, s.config.FromEmail, s.config.ToEmail, Subject(l), Body(l, dc))
		if err != nil {
			failures = append(failures, "email: "+err.Error())
		}
		messageID = id
	}

	if s.config.SMSPhone != "" && s.sms != nil {
		if _, err := s.sms.SendSMS(ctx, s.config.SMSPhone, SMS(l)); err != nil {
			failures = append(failures, "sms: "+err.Error())
		}
	}

	if len(failures) > 0 {
		return dispatch.Failed(Name, errors.NewTransportFailureError(Name, fmt.Errorf("%s", strings.Join(failures, "; "))))
	}
	return dispatch.Succeeded(Name, messageID)
}

func Subject(l lead.Lead) string {
	return fmt.Sprintf("New %s lead: %s (%s)", l.PayoutMethod.Label(), l.CarTitle(), l.City)
}

func Body(l lead.Lead, dc dispatch.DeliveryContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", l.Name)
	fmt.Fprintf(&b, "Phone: %s\n", l.Phone)
	fmt.Fprintf(&b, "Email: %s\n", l.Email)
	fmt.Fprintf(&b, "City: %s\n", l.City)
	fmt.Fprintf(&b, "Car: %s\n", l.CarTitle())
	fmt.Fprintf(&b, "Payout: %s", l.PayoutMethod.Label())
	if l.CryptoToken != "" {
		fmt.Fprintf(&b, " (%s)", l.CryptoToken)
	}
	fmt.Fprintf(&b, "\nSource: %s\n", l.Source)
	if dc.ExternalID != "" {
		fmt.Fprintf(&b, "Lead ID: %s\n", dc.ExternalID)
	}
	return b.String()
}

const smsMaxRunes = 160

// SMS caps the text at 160 characters, cutting on rune boundaries.
func SMS(l lead.Lead) string {
	msg := fmt.Sprintf("Lead: %s %s, %s, %s, %s", l.Name, l.Phone, l.CarTitle(), l.City, l.PayoutMethod.Label())
	if utf8.RuneCountInString(msg) <= smsMaxRunes {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:smsMaxRunes-3]) + "..."
}
