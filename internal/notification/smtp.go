package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/wneessen/go-mail"
)

// EmailSender delivers an HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, to string, msg Message) error
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

const defaultSMTPPort = 587

type deliverFunc func(ctx context.Context, client *mail.Client, msg *mail.Msg) error

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
<h2>{{ .Subject }}</h2>
{{ range .Lines }}<p>{{ . }}</p>
{{ end }}</body>
</html>
`))

// SMTPSender sends notification emails through an SMTP relay.
type SMTPSender struct {
	cfg     SMTPConfig
	deliver deliverFunc
}

// NewSMTPSender constructs an SMTP sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port <= 0 {
		cfg.Port = defaultSMTPPort
	}
	return &SMTPSender{cfg: cfg, deliver: dialAndSend}
}

func dialAndSend(ctx context.Context, client *mail.Client, msg *mail.Msg) error {
	return client.DialAndSendWithContext(ctx, msg)
}

// SendEmail renders msg and hands it to the relay. The connection is bound to ctx.
func (s *SMTPSender) SendEmail(ctx context.Context, to string, msg Message) error {
	if strings.TrimSpace(to) == "" || !strings.Contains(to, "@") {
		return fmt.Errorf("%w: %q is not an email address", ErrInvalidRecipient, to)
	}

	m, err := s.compose(to, msg)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return fmt.Errorf("failed to configure smtp client: %w", err)
	}
	if err := s.deliver(ctx, client, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(DefaultSendTimeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return mail.NewClient(s.cfg.Host, opts...)
}

func (s *SMTPSender) compose(to string, msg Message) (*mail.Msg, error) {
	var html bytes.Buffer
	if err := emailTemplate.Execute(&html, msg); err != nil {
		return nil, fmt.Errorf("failed to render email: %w", err)
	}

	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	m.Subject(msg.Subject)
	text := msg.Text
	if text == "" {
		text = strings.Join(msg.Lines, "\n")
	}
	m.SetBodyString(mail.TypeTextPlain, text)
	m.AddAlternativeString(mail.TypeTextHTML, html.String())
	return m, nil
}
