package providers

import (
	"context"
	"fmt"
	"net/smtp"

	"drainsentry-backend/internal/config"
	"drainsentry-backend/internal/models"
)

// Email delivers notifications over plain SMTP.
type Email struct {
	cfg config.Config
}

func NewEmail(cfg config.Config) *Email {
	return &Email{cfg: cfg}
}

func (e *Email) Send(ctx context.Context, notif models.Notification, contact models.Contact) error {
	if contact.Email == "" {
		return fmt.Errorf("no email address registered")
	}

	smtpServer := e.cfg.Email.SMTPServer
	smtpPort := e.cfg.Email.SMTPPort
	username := e.cfg.Email.Username
	password := e.cfg.Email.Password

	if smtpServer == "" || smtpPort == 0 || username == "" || password == "" {
		return fmt.Errorf("missing Email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}

	message := fmt.Sprintf("Subject: %s\n\n%s", notif.Title, notif.Body)

	auth := smtp.PlainAuth("", username, password, smtpServer)
	to := []string{contact.Email}
	addr := fmt.Sprintf("%s:%d", smtpServer, smtpPort)

	if err := smtp.SendMail(addr, auth, username, to, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", contact.Email, err)
	}

	return nil
}
