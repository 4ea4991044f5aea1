// Package email sends transactional mail through SendGrid, or only logs it
// when no provider is configured.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"log/slog"
	"net/mail"
	texttmpl "text/template"

	"github.com/mygeslike/api/internal/config"
)

// Message is a rendered email.
type Message struct {
	To      []mail.Address
	Subject string
	Text    string
	HTML    string
}

// HasRecipients reports whether the message can be sent.
func (m Message) HasRecipients() bool { return len(m.To) > 0 }

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the sender selected by cfg.Provider.
func New(cfg config.EmailConfig, appName string, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogSender(logger), nil
	case "sendgrid":
		return NewSendGridSender(cfg.SendGridAPIKey, appName, mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}, logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// MaxConcurrentSends bounds in-flight SendAsync deliveries process-wide.
const MaxConcurrentSends = 4

var sendSlots = make(chan struct{}, MaxConcurrentSends)

// SendAsync delivers messages in the background, at most
// MaxConcurrentSends at a time. Failures are logged and never reach the
// caller.
func SendAsync(sender Sender, logger *slog.Logger, msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	go func() {
		for _, msg := range msgs {
			sendSlots <- struct{}{}
			go func(msg Message) {
				defer func() { <-sendSlots }()
				if err := sender.Send(context.Background(), msg); err != nil {
					logger.Error("failed to send email",
						slog.String("subject", msg.Subject),
						slog.Int("recipients", len(msg.To)),
						slog.String("error", err.Error()))
				}
			}(msg)
		}
	}()
}

//go:embed templates/*
var templateFS embed.FS

var (
	accountCreatedText = texttmpl.Must(texttmpl.ParseFS(templateFS, "templates/account_created.txt"))
	accountCreatedHTML = htmltmpl.Must(htmltmpl.ParseFS(templateFS, "templates/account_created.gohtml"))
)

// AccountCreatedData fills the account-created template.
type AccountCreatedData struct {
	AppName       string
	FirstName     string
	LastName      string
	Email         string
	PromotionName string
	LoginURL      string
}

// AccountCreated renders the mail sent to students created in bulk.
func AccountCreated(data AccountCreatedData) (Message, error) {
	var text, html bytes.Buffer
	if err := accountCreatedText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("rendering account email text: %w", err)
	}
	if err := accountCreatedHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("rendering account email html: %w", err)
	}
	return Message{
		To:      []mail.Address{{Name: data.FirstName + " " + data.LastName, Address: data.Email}},
		Subject: "Your account has been created",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
