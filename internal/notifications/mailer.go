package notifications

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/geocoder89/accounts/internal/domain/user"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

const (
	tmplWelcome       = "welcome"
	tmplPasswordReset = "password_reset"
)

type MailerConfig struct {
	AppName string
	Support string

	// From is the bare sender address. The app name is prepended as display name.
	From string
	// DefaultSiteName is the link target when the caller supplies no url.
	DefaultSiteName string
}

// Mailer renders the account emails and hands them to a Sender.
type Mailer struct {
	sender Sender
	cfg    MailerConfig
	html   *htmltemplate.Template
	text   *texttemplate.Template
}

func NewMailer(sender Sender, cfg MailerConfig) (*Mailer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Mailer{sender: sender, cfg: cfg, html: html, text: text}, nil
}

type mailData struct {
	AppName   string
	FirstName string
	Email     string
	URL       string
	Host      string
	Support   string
	Token     string
	Minutes   int
}

func (m *Mailer) data(u user.User, siteURL, origin string) mailData {
	if siteURL == "" {
		siteURL = m.cfg.DefaultSiteName
	}
	return mailData{
		AppName:   m.cfg.AppName,
		FirstName: u.FirstName,
		Email:     u.Email,
		URL:       siteURL,
		Host:      origin,
		Support:   m.cfg.Support,
	}
}

// Welcome greets an identity created by an administrator.
func (m *Mailer) Welcome(ctx context.Context, u user.User, siteURL, origin string) error {
	subject := fmt.Sprintf("Welcome to the %s Family!", m.cfg.AppName)
	return m.send(ctx, u, tmplWelcome, subject, m.data(u, siteURL, origin))
}

// SendPasswordReset mails a plaintext reset token together with its lifetime.
func (m *Mailer) SendPasswordReset(ctx context.Context, u user.User, token string, ttl time.Duration, siteURL, origin string) error {
	d := m.data(u, siteURL, origin)
	d.Token = token
	d.Minutes = int(ttl / time.Minute)

	subject := fmt.Sprintf("Your password reset token (valid for only %d minutes)", d.Minutes)
	return m.send(ctx, u, tmplPasswordReset, subject, d)
}

func (m *Mailer) send(ctx context.Context, u user.User, name, subject string, d mailData) error {
	var html, text bytes.Buffer
	if err := m.html.ExecuteTemplate(&html, name+".html", d); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	if err := m.text.ExecuteTemplate(&text, name+".txt", d); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	return m.sender.Send(ctx, Message{
		From:    m.from(),
		To:      u.Email,
		Subject: subject,
		HTML:    html.String(),
		Text:    text.String(),
	})
}

func (m *Mailer) from() string {
	if m.cfg.AppName == "" {
		return m.cfg.From
	}
	return fmt.Sprintf("%s <%s>", m.cfg.AppName, m.cfg.From)
}
