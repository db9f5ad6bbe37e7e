package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	domhacienda "github.com/jhoicas/hacienda-api/internal/domain/hacienda"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/mail"
	"github.com/jhoicas/hacienda-api/pkg/logger"
)

// DocumentFilesUseCase entrega el XML y la representación gráfica (PDF) de un comprobante,
// y los envía por correo al receptor.
type DocumentFilesUseCase struct {
	docs      repository.DocumentRepository
	generator PDFGenerator
	mailer    MailSender // nil si no hay SMTP configurado
	log       *logger.Logger
}

// NewDocumentFilesUseCase construye el caso de uso. mailer puede ser nil.
func NewDocumentFilesUseCase(docs repository.DocumentRepository, generator PDFGenerator, mailer MailSender, log *logger.Logger) *DocumentFilesUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentFilesUseCase{docs: docs, generator: generator, mailer: mailer, log: log.WithComponent("document_files")}
}

// XML devuelve el XML firmado (o el sin firma en modo simulado) y el nombre de archivo.
func (uc *DocumentFilesUseCase) XML(ctx context.Context, ownerID, key string) ([]byte, string, error) {
	d, err := uc.owned(ctx, ownerID, key)
	if err != nil {
		return nil, "", err
	}
	return []byte(documentXML(d)), key + ".xml", nil
}

// PDF genera la representación gráfica.
//
// Retorna:
//   - domain.ErrNotFound   si la clave no existe.
//   - domain.ErrForbidden  si el comprobante es de otro usuario.
func (uc *DocumentFilesUseCase) PDF(ctx context.Context, ownerID, key string) ([]byte, string, error) {
	d, err := uc.owned(ctx, ownerID, key)
	if err != nil {
		return nil, "", err
	}
	pdf, err := uc.render(ctx, d)
	if err != nil {
		return nil, "", err
	}
	return pdf, key + ".pdf", nil
}

// Email envía XML y PDF. Sin destinatarios explícitos usa el correo del receptor.
func (uc *DocumentFilesUseCase) Email(ctx context.Context, ownerID, key string, to []string) error {
	if uc.mailer == nil {
		return fmt.Errorf("%w: el envío de correo no está configurado", domain.ErrInvalidInput)
	}
	// ── 1. Cargar comprobante ─────────────────────────────────────────────────
	d, err := uc.owned(ctx, ownerID, key)
	if err != nil {
		return err
	}
	doc, err := decodePayload(d)
	if err != nil {
		return err
	}
	if len(to) == 0 && doc.Receiver != nil && doc.Receiver.Email != "" {
		to = []string{doc.Receiver.Email}
	}
	if len(to) == 0 {
		return domain.NewValidationError("to", "No hay destinatario: indique 'to' o el correo del receptor.")
	}

	// ── 2. Adjuntos ───────────────────────────────────────────────────────────
	var pdf []byte
	var xmlBytes []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pdf, err = uc.render(gctx, d)
		return err
	})
	g.Go(func() error {
		xmlBytes = []byte(documentXML(d))
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// ── 3. Enviar ─────────────────────────────────────────────────────────────
	msg := mail.Message{
		To:       to,
		Subject:  fmt.Sprintf("Comprobante electrónico %s", d.ConsecutiveNumber),
		HTMLBody: emailBody(doc, d),
		Attachments: []mail.Attachment{
			{Filename: key + ".xml", ContentType: "application/xml", Data: xmlBytes},
			{Filename: key + ".pdf", ContentType: "application/pdf", Data: pdf},
		},
	}
	if err := uc.mailer.Send(ctx, msg); err != nil {
		uc.log.WithDocument(key).Error().Err(err).Msg("no se pudo enviar el correo")
		return fmt.Errorf("enviar correo: %w", err)
	}
	uc.log.WithDocument(key).Info().Strs("to", to).Msg("comprobante enviado por correo")
	return nil
}

func (uc *DocumentFilesUseCase) render(ctx context.Context, d *entity.Document) ([]byte, error) {
	doc, err := decodePayload(d)
	if err != nil {
		return nil, err
	}
	pdf, err := uc.generator.Generate(ctx, PDFInput{
		Document:    doc,
		Key:         d.DocumentKey,
		Consecutive: d.ConsecutiveNumber,
		IssuedAt:    d.IssuedAt,
		Status:      d.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("pdf: generar: %w", err)
	}
	return pdf, nil
}

func (uc *DocumentFilesUseCase) owned(ctx context.Context, ownerID, key string) (*entity.Document, error) {
	d, err := uc.docs.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("comprobante %s: %w", key, domain.ErrNotFound)
	}
	if d.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return d, nil
}

func decodePayload(d *entity.Document) (*domhacienda.Document, error) {
	var doc domhacienda.Document
	if err := json.Unmarshal(d.Payload, &doc); err != nil {
		return nil, fmt.Errorf("leer documento almacenado: %w", err)
	}
	return &doc, nil
}

func documentXML(d *entity.Document) string {
	if d.SignedXML != "" {
		return d.SignedXML
	}
	return d.XML
}

func emailBody(doc *domhacienda.Document, d *entity.Document) string {
	var sb strings.Builder
	sb.WriteString("<p>Estimado cliente:</p>")
	fmt.Fprintf(&sb, "<p>Adjuntamos el comprobante electrónico emitido por <b>%s</b>.</p>", htmlEscape(doc.Emitter.FullName))
	fmt.Fprintf(&sb, "<p>Clave: %s<br>Consecutivo: %s</p>", d.DocumentKey, d.ConsecutiveNumber)
	return sb.String()
}

var htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func htmlEscape(s string) string { return htmlReplacer.Replace(s) }
