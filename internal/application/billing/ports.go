package billing

import (
	"context"
	"crypto/tls"
	"time"

	domhacienda "github.com/jhoicas/hacienda-api/internal/domain/hacienda"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/mail"
)

// DocumentTxRunner ejecuta una función dentro de una transacción con el repositorio de comprobantes.
type DocumentTxRunner interface {
	RunDocuments(ctx context.Context, fn func(docs repository.DocumentRepository) error) error
}

// RenderRequest datos para producir el XML de un comprobante validado.
type RenderRequest struct {
	OwnerID     string
	Document    *domhacienda.Document
	Key         string
	Consecutive string
	IssuedAt    time.Time
}

// Rendered resultado de la capacidad de firma.
type Rendered struct {
	XML           []byte
	SignedXML     []byte // vacío en modo simulado
	CertificateID string
}

// SigningCapability produce el XML del comprobante. RealSigning construye y firma con el
// certificado del emisor; SimulatedSigning devuelve un XML fijo sin firma.
type SigningCapability interface {
	Name() string
	Render(ctx context.Context, req RenderRequest) (*Rendered, error)
}

// CertificateProvider entrega el certificado descifrado del usuario solo durante fn.
type CertificateProvider interface {
	WithActiveCertificate(ctx context.Context, ownerID string, fn func(certID string, cert tls.Certificate) error) error
}

// PDFInput datos para la representación gráfica.
type PDFInput struct {
	Document    *domhacienda.Document
	Key         string
	Consecutive string
	IssuedAt    time.Time
	Status      string
}

// PDFGenerator genera el PDF del comprobante.
type PDFGenerator interface {
	Generate(ctx context.Context, in PDFInput) ([]byte, error)
}

// MailSender entrega correos con adjuntos.
type MailSender interface {
	Send(ctx context.Context, msg mail.Message) error
}
