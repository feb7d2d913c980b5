// Package mailer defines the outbound email seam. Delivery itself is an
// external collaborator; this package owns only the interface and the OTP
// message template.
package mailer

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Sender delivers one HTML email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// OTPSubject is the fixed subject line for passcode emails.
const OTPSubject = "Your OTP Verification Code"

// OTPBody renders the passcode email body with the stated validity window.
func OTPBody(code string, ttl time.Duration) string {
	return fmt.Sprintf(`<div style="font-family: system-ui, -apple-system, Segoe UI, Roboto, Arial; line-height: 1.4;">
  <p>Your OTP code is:</p>
  <p style="font-size: 28px; font-weight: 700; letter-spacing: 4px; margin: 8px 0;">%s</p>
  <p style="color:#555; font-size: 12px;">This code expires in %d minutes. If you didn't request this, you can ignore this email.</p>
</div>`, code, int(ttl.Minutes()))
}

// LogSender writes messages to the process log instead of delivering them.
// Development use only.
type LogSender struct{}

// Send implements [Sender].
func (LogSender) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("campusauth: mail to=%s subject=%q (delivery disabled)", to, subject)
	return nil
}
