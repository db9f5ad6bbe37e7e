package billing

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/jhoicas/hacienda-api/internal/domain"
	infrahacienda "github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/metrics"
	pkghacienda "github.com/jhoicas/hacienda-api/pkg/hacienda"
)

// RealSigning construye el XML v4.4 y lo firma con XAdES-EPES usando el certificado activo del emisor.
type RealSigning struct {
	builder    *infrahacienda.XMLBuilderService
	signer     pkghacienda.Signer
	certs      CertificateProvider
	providerID string
	metrics    *metrics.Metrics
}

// NewRealSigning crea la capacidad de firma real. providerID puede ser vacío.
func NewRealSigning(
	builder *infrahacienda.XMLBuilderService,
	signer pkghacienda.Signer,
	certs CertificateProvider,
	providerID string,
	m *metrics.Metrics,
) *RealSigning {
	return &RealSigning{builder: builder, signer: signer, certs: certs, providerID: providerID, metrics: m}
}

func (s *RealSigning) Name() string { return "real" }

// Render genera y firma el comprobante.
func (s *RealSigning) Render(ctx context.Context, req RenderRequest) (*Rendered, error) {
	unsigned, err := s.builder.Build(&infrahacienda.BuildContext{
		Document:    req.Document,
		Key:         req.Key,
		Consecutive: req.Consecutive,
		IssuedAt:    req.IssuedAt,
		ProviderID:  s.providerID,
	})
	if err != nil {
		return nil, &domain.SignatureError{Reason: "construir XML", Err: err}
	}

	out := &Rendered{XML: unsigned}
	err = s.certs.WithActiveCertificate(ctx, req.OwnerID, func(certID string, cert tls.Certificate) error {
		start := time.Now()
		signed, err := s.signer.Sign(unsigned, cert)
		s.metrics.ObserveSigning(time.Since(start))
		if err != nil {
			return &domain.SignatureError{Reason: "firmar XML", Err: err}
		}
		out.SignedXML = signed
		out.CertificateID = certID
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveCertificate) {
			return nil, &domain.CertificateError{Reason: err.Error()}
		}
		return nil, err
	}
	return out, nil
}

// SimulatedSigning devuelve un XML determinista sin firma con la clave y los nombres de las partes.
type SimulatedSigning struct{}

// NewSimulatedSigning crea la capacidad simulada.
func NewSimulatedSigning() *SimulatedSigning { return &SimulatedSigning{} }

func (SimulatedSigning) Name() string { return "simulated" }

// Render no usa certificados ni red.
func (SimulatedSigning) Render(_ context.Context, req RenderRequest) (*Rendered, error) {
	xmlBytes, err := infrahacienda.BuildPlaceholder("", req.Key, req.Document.Emitter.FullName, req.Document.ReceiverName())
	if err != nil {
		return nil, &domain.SignatureError{Reason: "XML simulado", Err: err}
	}
	return &Rendered{XML: xmlBytes}, nil
}

var (
	_ SigningCapability = (*RealSigning)(nil)
	_ SigningCapability = SimulatedSigning{}
)
