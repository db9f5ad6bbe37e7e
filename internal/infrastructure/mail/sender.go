package mail

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/jhoicas/hacienda-api/pkg/config"
)

// Attachment archivo adjunto en memoria.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message correo a enviar.
type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Dialer abstrae gomail.Dialer para pruebas.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender envía comprobantes por SMTP.
type SMTPSender struct {
	from   string
	dialer Dialer
}

// NewSMTPSender construye el remitente desde la configuración SMTP.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

// NewSMTPSenderWithDialer inyecta el dialer (tests).
func NewSMTPSenderWithDialer(from string, d Dialer) *SMTPSender {
	return &SMTPSender{from: from, dialer: d}
}

// Send arma el mensaje MIME y lo entrega. gomail no acepta contexto: solo se revisa
// la cancelación antes de conectar.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail: sin destinatarios")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := Build(s.from, msg)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("mail: enviar: %w", err)
	}
	return nil
}

// Build construye el gomail.Message con adjuntos en memoria.
func Build(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)
	for _, a := range msg.Attachments {
		data := a.Data
		m.Attach(a.Filename,
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		)
	}
	return m
}
