package channel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"groupsend/internal/entity"
)

// EmailSender delivers over SMTP with implicit TLS.
type EmailSender struct {
	smtpHost string
	smtpPort string
	username string
	password string
	from     string
}

func NewEmailSender(host, port, user, pass, from string) *EmailSender {
	if from == "" {
		from = user
	}
	return &EmailSender{
		smtpHost: host,
		smtpPort: port,
		username: user,
		password: pass,
		from:     from,
	}
}

func (e *EmailSender) Name() string {
	return NameEmail
}

func (e *EmailSender) AddressOf(r *entity.RecipientSnapshot) string {
	return r.Email
}

func (e *EmailSender) Send(ctx context.Context, address string, msg Message) error {
	subject := msg.Subject
	if subject == "" {
		subject = "Group message"
	}

	body := []byte(
		fmt.Sprintf("From: %s\r\n", e.from) +
			fmt.Sprintf("To: %s\r\n", address) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=\"utf-8\"\r\n" +
			"\r\n" +
			msg.Body,
	)

	serverAddr := e.smtpHost + ":" + e.smtpPort

	// Implicit TLS for port 465
	tlsConfig := &tls.Config{
		ServerName: e.smtpHost,
	}

	dialer := &tls.Dialer{Config: tlsConfig}
	conn, err := dialer.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return fmt.Errorf("smtp dial failed: %v", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.smtpHost)
	if err != nil {
		return fmt.Errorf("smtp client failed: %v", err)
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", e.username, e.password, e.smtpHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth failed: %v", err)
	}

	if err := client.Mail(e.from); err != nil {
		return fmt.Errorf("smtp mail failed: %v", err)
	}
	if err := client.Rcpt(address); err != nil {
		return fmt.Errorf("smtp rcpt failed: %v", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data failed: %v", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("smtp write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close failed: %v", err)
	}

	return nil
}
