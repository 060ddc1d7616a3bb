// Package transport delivers composed messages over SMTP.
package transport

import (
	"context"
	"crypto/tls"
	"io"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/sendora/sendora/internal/models"
)

// Transport abstracts the outbound mail channel so the dispatcher can be
// tested against mocks.
type Transport interface {
	// Verify performs the pre-flight connect+auth handshake without
	// sending a message. Failure is a CREDENTIAL_ERROR.
	Verify(ctx context.Context) error
	// Send transmits one composed message. Failure is a SEND_ERROR.
	Send(ctx context.Context, msg models.Message) error
}

// Factory builds a Transport from session credentials. The wizard creates
// one per batch so credentials never outlive the session.
type Factory func(creds models.SMTPCredentials) Transport

// SMTPTransport implements Transport using go-mail.
type SMTPTransport struct {
	creds  models.SMTPCredentials
	dialer *mail.Dialer
}

// dialTimeout bounds the connect+handshake of every transport operation.
const dialTimeout = 15 * time.Second

// NewSMTP creates an SMTP transport for one batch. Implicit TLS is derived
// from port 465 unless the credentials say otherwise; other ports
// negotiate STARTTLS opportunistically.
func NewSMTP(creds models.SMTPCredentials) *SMTPTransport {
	d := mail.NewDialer(creds.Host, creds.Port, creds.Email, creds.Password)
	d.Timeout = dialTimeout
	d.SSL = creds.UseSSL()
	d.TLSConfig = &tls.Config{ServerName: creds.Host}

	return &SMTPTransport{creds: creds, dialer: d}
}

// Verify dials and authenticates, then closes the connection. No message
// is sent.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return models.NewError(models.KindCancelled, err)
	}

	sc, err := t.dialer.Dial()
	if err != nil {
		return models.NewError(models.KindCredential, err)
	}
	_ = sc.Close()
	return nil
}

// Send builds the MIME message with attachments and transmits it on a
// fresh connection.
func (t *SMTPTransport) Send(ctx context.Context, msg models.Message) error {
	if err := ctx.Err(); err != nil {
		return models.NewError(models.KindCancelled, err)
	}

	m := buildMessage(t.creds.Email, msg)
	if err := t.dialer.DialAndSend(m); err != nil {
		return models.NewError(models.KindSend, err)
	}
	return nil
}

// buildMessage converts the engine message into a go-mail message.
func buildMessage(from string, msg models.Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	// prefer multipart/alternative when both bodies are present
	if msg.Body != "" {
		m.SetBody("text/plain", msg.Body)
		if msg.HTMLBody != "" {
			m.AddAlternative("text/html", msg.HTMLBody)
		}
	} else if msg.HTMLBody != "" {
		m.SetBody("text/html", msg.HTMLBody)
	}

	for _, att := range msg.Attachments {
		data := att.Data
		settings := []mail.FileSetting{
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if att.ContentType != "" {
			settings = append(settings, mail.SetHeader(map[string][]string{
				"Content-Type": {att.ContentType},
			}))
		}
		m.Attach(att.Filename, settings...)
	}

	return m
}
