package billing

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda/signer"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/secrets"
)

// CertificateVault descifra el certificado activo del usuario solo durante una firma.
// Un mutex por certificado serializa su uso; el material descifrado no se guarda.
type CertificateVault struct {
	certs repository.CertificateRepository
	box   *secrets.Box
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCertificateVault crea la bóveda.
func NewCertificateVault(certs repository.CertificateRepository, box *secrets.Box) *CertificateVault {
	return &CertificateVault{certs: certs, box: box, now: time.Now, locks: make(map[string]*sync.Mutex)}
}

// WithClock reemplaza el reloj (tests).
func (v *CertificateVault) WithClock(now func() time.Time) *CertificateVault {
	v.now = now
	return v
}

// WithActiveCertificate implementa CertificateProvider.
func (v *CertificateVault) WithActiveCertificate(
	ctx context.Context,
	ownerID string,
	fn func(certID string, cert tls.Certificate) error,
) error {
	meta, err := v.certs.GetActiveByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if meta == nil {
		return domain.ErrNoActiveCertificate
	}
	now := v.now()
	if !meta.IsValidAt(now) {
		return &domain.CertificateError{Reason: fmt.Sprintf("el certificado %s no está vigente (%s a %s)",
			meta.Name, meta.ValidFrom.Format(time.DateOnly), meta.ValidTo.Format(time.DateOnly))}
	}
	if !meta.HaciendaCompatible {
		return &domain.CertificateError{Reason: fmt.Sprintf("el certificado %s no es compatible con Hacienda", meta.Name)}
	}

	lock := v.lockFor(meta.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	cert, err := openCertificate(v.box, meta)
	if err != nil {
		return err
	}
	return fn(meta.ID, cert)
}

// openCertificate descifra el .p12 y su contraseña. Los fallos son *domain.CertificateError.
func openCertificate(box *secrets.Box, meta *entity.Certificate) (tls.Certificate, error) {
	ad := []byte(meta.ID)
	p12, err := box.Open(meta.EncryptedP12, ad)
	if err != nil {
		return tls.Certificate{}, &domain.CertificateError{Reason: "no se pudo descifrar el certificado"}
	}
	defer secrets.Zero(p12)
	password, err := box.Open(meta.EncryptedPassword, ad)
	if err != nil {
		return tls.Certificate{}, &domain.CertificateError{Reason: "no se pudo descifrar la contraseña"}
	}
	defer secrets.Zero(password)

	cert, err := signer.DecodeP12(p12, string(password))
	if err != nil {
		return tls.Certificate{}, &domain.CertificateError{Reason: err.Error()}
	}
	return cert, nil
}

func (v *CertificateVault) lockFor(id string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.locks[id]
	if !ok {
		l = &sync.Mutex{}
		v.locks[id] = l
	}
	return l
}

var _ CertificateProvider = (*CertificateVault)(nil)
