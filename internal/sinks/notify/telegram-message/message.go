package telegrammessage

import (
	"regexp"
	"strings"
	"time"

	"lead-dispatch/internal/lead"
)

var reserved = regexp.MustCompile("([_*\\[\\]()~`>#+\\-=|{}.!\\\\])")

// Escape backslash-escapes every MarkdownV2 reserved character.
func Escape(s string) string {
	return reserved.ReplaceAllString(s, `\$1`)
}

const timeLayout = "January 2, 2006 at 03:04:05 PM"

func payoutText(l lead.Lead) string {
	text := l.PayoutMethod.Label()
	if l.IsCrypto() && l.CryptoToken != "" {
		text += " (" + l.CryptoToken + ")"
	}
	return text
}

func orDefault(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

// FormatMessage renders the lead alert in MarkdownV2.
func FormatMessage(l lead.Lead, at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	lines := []string{
		"🚗 *New Car Valuation Lead*",
		"",
		"👤 *Name:* " + Escape(l.Name),
		"📍 *Location:* " + Escape(l.City),
		"📞 *Phone:* " + Escape(l.Phone),
		"📧 *Email:* " + Escape(l.Email),
		"",
		"🚙 *Car Details:*",
		"• *Brand:* " + Escape(orDefault(l.Brand)),
		"• *Model:* " + Escape(orDefault(l.Model)),
		"",
		"💰 *Payout Method:* " + Escape(payoutText(l)),
		"",
		"🔗 *Source:* " + Escape(orDefault(l.Source)),
		"⏰ *Time:* " + Escape(at.In(loc).Format(timeLayout)),
	}
	return strings.Join(lines, "\n")
}
