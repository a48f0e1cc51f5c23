package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"strings"

	"github.com/mailgun/mailgun-go/v3"
	"gopkg.in/gomail.v2"
)

// Mailer доставляет одно письмо.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// InsecureTLS отключает проверку сертификата, только для локальных релеев.
	InsecureTLS bool
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureTLS {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &SMTPMailer{dialer: d, from: cfg.From}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	msg.AddAlternative("text/html", htmlBody(body))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp: не удалось отправить письмо: %w", err)
	}
	return nil
}

type MailgunConfig struct {
	Domain  string
	APIKey  string
	APIBase string
	From    string
}

type MailgunMailer struct {
	mg   mailgun.Mailgun
	from string
}

func NewMailgunMailer(cfg MailgunConfig) *MailgunMailer {
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}
	return &MailgunMailer{mg: mg, from: cfg.From}
}

func (m *MailgunMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := m.mg.NewMessage(m.from, subject, body, to)
	msg.SetHtml(htmlBody(body))

	if _, _, err := m.mg.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailgun: не удалось отправить письмо: %w", err)
	}
	return nil
}

func htmlBody(text string) string {
	lines := strings.Split(html.EscapeString(text), "\n")
	return "<p>" + strings.Join(lines, "<br>") + "</p>"
}
