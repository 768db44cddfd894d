// Package mailer delivers transactional email over SMTP.
package mailer

import (
	"fmt"
	"strings"

	"chatbot-api/internal/config"

	"gopkg.in/gomail.v2"
)

// Mailer sends verification emails through an SMTP relay.
type Mailer struct {
	cfg config.SMTPConfig
}

// New constructs a Mailer. A Mailer with no host configured reports as
// unconfigured and callers should skip wiring it.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// IsConfigured reports whether an SMTP host is set.
func (m *Mailer) IsConfigured() bool {
	return strings.TrimSpace(m.cfg.Host) != ""
}

// SendOTP emails a signup verification code.
func (m *Mailer) SendOTP(to, code string) error {
	subject := "Your verification code"
	body := fmt.Sprintf(
		"Your verification code is %s.\n\nIt expires in 10 minutes. If you did not request this, you can ignore this email.",
		code,
	)
	return m.send(to, subject, body)
}

// SendPasswordResetOTP emails a password reset code.
func (m *Mailer) SendPasswordResetOTP(to, code string) error {
	subject := "Your password reset code"
	body := fmt.Sprintf(
		"Your password reset code is %s.\n\nIt expires in 10 minutes. If you did not request a reset, you can ignore this email.",
		code,
	)
	return m.send(to, subject, body)
}

func (m *Mailer) send(to, subject, body string) error {
	if !m.IsConfigured() {
		return fmt.Errorf("mailer: smtp host is not configured")
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.User
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Password)
	if errSend := dialer.DialAndSend(msg); errSend != nil {
		return fmt.Errorf("mailer: send: %w", errSend)
	}
	return nil
}
