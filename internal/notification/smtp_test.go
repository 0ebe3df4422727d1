package notification

import (
	"bytes"
	"context"
	"errors"
	"mime"
	netmail "net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type capturedMail struct {
	client *mail.Client
	raw    string
}

func newCapturingSender(cfg SMTPConfig, err error) (*SMTPSender, *capturedMail) {
	captured := &capturedMail{}
	sender := NewSMTPSender(cfg)
	sender.deliver = func(ctx context.Context, client *mail.Client, msg *mail.Msg) error {
		var buf bytes.Buffer
		if _, werr := msg.WriteTo(&buf); werr != nil {
			return werr
		}
		captured.client, captured.raw = client, buf.String()
		return err
	}
	return sender, captured
}

func parsed(t *testing.T, raw string) *netmail.Message {
	t.Helper()
	m, err := netmail.ReadMessage(bytes.NewBufferString(raw))
	require.NoError(t, err)
	return m
}

func TestSMTPSenderComposesHTML(t *testing.T) {
	sender, captured := newCapturingSender(SMTPConfig{Host: "smtp.example.edu", Port: 587, Username: "bot", Password: "pw", From: "noreply@example.edu"}, nil)

	err := sender.SendEmail(context.Background(), "ana@example.edu", Message{
		Subject: "Your defense is scheduled",
		Text:    "Hello Ana",
		Lines:   []string{"Hello <Ana>", "Area: Networks"},
	})
	require.NoError(t, err)
	require.NotNil(t, captured.client)

	m := parsed(t, captured.raw)
	assert.Contains(t, m.Header.Get("To"), "ana@example.edu")
	assert.Contains(t, m.Header.Get("From"), "noreply@example.edu")
	assert.Contains(t, m.Header.Get("Content-Type"), "multipart/alternative")
	assert.Contains(t, captured.raw, "text/html")
	assert.Contains(t, captured.raw, "<p>Hello &lt;Ana&gt;</p>")
	assert.Contains(t, captured.raw, "<p>Area: Networks</p>")
}

func TestSMTPSenderEncodesNonASCIISubject(t *testing.T) {
	sender, captured := newCapturingSender(SMTPConfig{Host: "localhost", Port: 25, From: "noreply@example.edu"}, nil)

	subject := "Tu defensa de Examen de Graduación está programada"
	require.NoError(t, sender.SendEmail(context.Background(), "ana@example.edu", Message{Subject: subject, Text: "Hola"}))

	rawSubject := parsed(t, captured.raw).Header.Get("Subject")
	assert.NotEqual(t, subject, rawSubject)
	decoded, err := new(mime.WordDecoder).DecodeHeader(rawSubject)
	require.NoError(t, err)
	assert.Equal(t, subject, decoded)
}

func TestSMTPSenderErrors(t *testing.T) {
	sender, _ := newCapturingSender(SMTPConfig{Host: "localhost", Port: 25, From: "noreply@example.edu"}, errors.New("550 rejected"))

	err := sender.SendEmail(context.Background(), "not-an-address", Message{})
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	err = sender.SendEmail(context.Background(), "ana@example.edu", Message{Subject: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550 rejected")
}

func TestSMTPSenderRequiresHost(t *testing.T) {
	sender, captured := newCapturingSender(SMTPConfig{From: "noreply@example.edu"}, nil)

	err := sender.SendEmail(context.Background(), "ana@example.edu", Message{Subject: "s"})
	require.Error(t, err)
	assert.Empty(t, captured.raw)
}
