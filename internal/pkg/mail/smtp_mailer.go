package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/agenciohq/agencio/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
)

// SendMail delivers a plain-text email via SMTP. Operational notifications
// are short and textual, so no HTML pipeline exists here.
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "587")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := strings.TrimSpace(env.GetEnv("SMTP_SENDER", ""))

	if sender == "" {
		sender = "no-reply@localhost"
		log.Warnf("[Mail] SMTP_SENDER not set, using %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	msg := buildMessage(sender, to, subject, body)
	addr := fmt.Sprintf("%s:%s", host, port)

	if err := smtp.SendMail(addr, auth, sender, []string{to}, msg); err != nil {
		log.Errorf("[Mail] send to %s via %s failed: %v", to, addr, err)
		return err
	}
	log.Infof("[Mail] sent %q to %s", subject, to)
	return nil
}

func buildMessage(sender, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + sender + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
