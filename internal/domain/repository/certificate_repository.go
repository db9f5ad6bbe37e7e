package repository

import (
	"context"

	"github.com/jhoicas/hacienda-api/internal/domain/entity"
)

// CertificateRepository define el puerto de persistencia para certificados de firma.
type CertificateRepository interface {
	Create(ctx context.Context, cert *entity.Certificate) error
	GetByID(ctx context.Context, id string) (*entity.Certificate, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*entity.Certificate, error)
	// GetActiveByOwner certificado activo más reciente del usuario; (nil, nil) si no hay.
	GetActiveByOwner(ctx context.Context, ownerID string) (*entity.Certificate, error)
	// Update persiste nombre y estado activo; domain.ErrNotFound si no existe.
	Update(ctx context.Context, cert *entity.Certificate) error
	// DeactivateOthers deja activo solo keepID entre los certificados del usuario.
	DeactivateOthers(ctx context.Context, ownerID, keepID string) error
	Delete(ctx context.Context, id string) error
}
