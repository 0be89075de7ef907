// Package notify renders the OTP email shared by every eduAuth.Mailer
// implementation. Delivery lives in the subpackages.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// OTPSubject is the subject line of every OTP email.
const OTPSubject = "Edunova - OTP Verification"

// DefaultFrom is used when no sender address is configured.
const DefaultFrom = "no-reply@academix.com"

var otpHTML = template.Must(template.New("otp").Parse(`
      <p>Dear {{.Name}},</p>
      <p>Your One Time Password (OTP) is: <strong>{{.OTP}}</strong></p>
      <p>This OTP is valid for {{.Validity}}.</p>
      <p>Best regards,</p>
      <p>Edunova Team</p>
`))

// Message is a rendered OTP email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// RenderOTP builds the email for otp. validity is shown to the reader and
// should match the OTP TTL.
func RenderOTP(name, otp string, validity time.Duration) (Message, error) {
	v := humanize(validity)

	var html bytes.Buffer
	err := otpHTML.Execute(&html, struct{ Name, OTP, Validity string }{name, otp, v})
	if err != nil {
		return Message{}, fmt.Errorf("render otp email: %w", err)
	}

	return Message{
		Subject: OTPSubject,
		Text: fmt.Sprintf("Dear %s,\n\nYour One Time Password (OTP) is: %s\n\nThis OTP is valid for %s.\n\nBest regards,\nEdunova Team",
			name, otp, v),
		HTML: html.String(),
	}, nil
}

func humanize(d time.Duration) string {
	switch {
	case d <= 0:
		return "10 minutes"
	case d%time.Hour == 0 && d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0 && d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
