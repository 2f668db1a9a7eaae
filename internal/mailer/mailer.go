// Package mailer renders and delivers transactional email.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	texttemplate "text/template"

	"github.com/utafrali/natours/internal/domain"
)

//go:embed templates
var templateFS embed.FS

// Message is one rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Subjects of the transactional emails.
const (
	SubjectWelcome             = "Welcome to the Natours Family!"
	SubjectPasswordReset       = "Your password reset token (valid only for 10 minutes)"
	SubjectBookingConfirmation = "Your Natours booking is confirmed"
)

// Mailer renders the transactional templates and hands them to a Sender.
type Mailer struct {
	sender Sender
	from   string
	html   *template.Template
	text   *texttemplate.Template
	logger *slog.Logger
}

// New parses the embedded templates. from is the full From header value,
// e.g. "Natours <hello@natours.io>".
func New(sender Sender, from string, logger *slog.Logger) (*Mailer, error) {
	html, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Mailer{sender: sender, from: from, html: html, text: text, logger: logger}, nil
}

type templateData struct {
	Subject   string
	FirstName string
	URL       string
	TourName  string
	Price     float64
}

// SendWelcome greets a new user. url points at the account page.
func (m *Mailer) SendWelcome(ctx context.Context, u *domain.User, url string) error {
	return m.send(ctx, u, "welcome", SubjectWelcome, templateData{URL: url})
}

// SendPasswordReset mails the reset URL carrying the plain reset token.
func (m *Mailer) SendPasswordReset(ctx context.Context, u *domain.User, url string) error {
	return m.send(ctx, u, "passwordReset", SubjectPasswordReset, templateData{URL: url})
}

// SendBookingConfirmation confirms a paid booking. url points at the user's tours.
func (m *Mailer) SendBookingConfirmation(ctx context.Context, u *domain.User, tourName string, price float64, url string) error {
	return m.send(ctx, u, "bookingConfirmation", SubjectBookingConfirmation, templateData{
		URL:      url,
		TourName: tourName,
		Price:    price,
	})
}

func (m *Mailer) send(ctx context.Context, u *domain.User, name, subject string, data templateData) error {
	data.Subject = subject
	data.FirstName = firstName(u.Name)

	var html, text bytes.Buffer
	if err := m.html.ExecuteTemplate(&html, name, data); err != nil {
		return fmt.Errorf("render %s html: %w", name, err)
	}
	if err := m.text.ExecuteTemplate(&text, name, data); err != nil {
		return fmt.Errorf("render %s text: %w", name, err)
	}

	msg := Message{
		From:    m.from,
		To:      u.Email,
		Subject: subject,
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", name, err)
	}

	m.logger.InfoContext(ctx, "email sent",
		slog.String("template", name),
		slog.String("user_id", u.ID),
	)
	return nil
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}
