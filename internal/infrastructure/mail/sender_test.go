package mail_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jhoicas/hacienda-api/internal/infrastructure/mail"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSend_AdjuntaArchivos(t *testing.T) {
	d := &fakeDialer{}
	s := mail.NewSMTPSenderWithDialer("facturas@empresa.cr", d)

	err := s.Send(context.Background(), mail.Message{
		To:       []string{"cliente@receptor.cr"},
		Subject:  "Factura electrónica",
		HTMLBody: "<p>Adjunto</p>",
		Attachments: []mail.Attachment{
			{Filename: "comprobante.xml", ContentType: "application/xml", Data: []byte("<FacturaElectronica/>")},
		},
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	var buf bytes.Buffer
	_, err = d.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "cliente@receptor.cr")
	assert.Contains(t, out, `filename="comprobante.xml"`)
}

func TestSend_Errores(t *testing.T) {
	s := mail.NewSMTPSenderWithDialer("a@b.cr", &fakeDialer{err: errors.New("smtp caído")})

	assert.Error(t, s.Send(context.Background(), mail.Message{}), "sin destinatarios")
	assert.Error(t, s.Send(context.Background(), mail.Message{To: []string{"x@y.cr"}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, mail.Message{To: []string{"x@y.cr"}}), context.Canceled)
}
