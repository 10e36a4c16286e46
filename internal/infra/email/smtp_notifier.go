// internal/infra/email/smtp_notifier.go
package email

import (
	"fmt"

	"seat_monitor_bot/internal/domain/notify"
	"seat_monitor_bot/internal/infra/config"

	"gopkg.in/gomail.v2"
)

// SMTPNotifier implements the notify.Notifier interface over an SMTP relay
// (SSL, sender address + app password).
type SMTPNotifier struct {
	host     string
	port     int
	sender   string
	password string
}

func NewSMTPNotifier(cfg *config.AppConfig) *SMTPNotifier {
	return &SMTPNotifier{
		host:     cfg.EmailSMTPHost,
		port:     cfg.EmailSMTPPort,
		sender:   cfg.EmailSender,
		password: cfg.EmailAppPassword,
	}
}

// Send composes and delivers one plain-text message. Missing credentials
// fail the send rather than the process; the monitor logs and moves on.
func (n *SMTPNotifier) Send(recipient, subject, body string) error {
	if n.sender == "" || n.password == "" {
		return fmt.Errorf("%w: email sender credentials are not configured", notify.ErrSendFailed)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.sender)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(n.host, n.port, n.sender, n.password)
	dialer.SSL = n.port == 465

	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("%w: %v", notify.ErrSendFailed, err)
	}
	return nil
}
