package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/hacienda-api/internal/application/dto"
	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/hacienda/signer"
	"github.com/jhoicas/hacienda-api/internal/infrastructure/secrets"
	"github.com/jhoicas/hacienda-api/pkg/logger"
)

// CertificateUseCase registro de certificados de firma por usuario.
// El .p12 y su contraseña se guardan cifrados; el último certificado cargado queda activo.
type CertificateUseCase struct {
	certs repository.CertificateRepository
	box   *secrets.Box
	log   *logger.Logger
	now   func() time.Time
}

// NewCertificateUseCase construye el caso de uso.
func NewCertificateUseCase(certs repository.CertificateRepository, box *secrets.Box, log *logger.Logger) *CertificateUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &CertificateUseCase{certs: certs, box: box, log: log.WithComponent("certificates"), now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (uc *CertificateUseCase) WithClock(now func() time.Time) *CertificateUseCase {
	uc.now = now
	return uc
}

// Upload decodifica el .p12, extrae sus metadatos y lo guarda como certificado activo.
// Un archivo o contraseña inválidos devuelven *domain.ValidationError.
func (uc *CertificateUseCase) Upload(ctx context.Context, ownerID, name string, p12 []byte, password string) (*dto.CertificateResponse, error) {
	if uc.box == nil {
		return nil, &domain.CertificateError{Reason: "CERT_ENCRYPTION_KEY no configurada"}
	}
	if len(p12) == 0 {
		return nil, domain.NewValidationError("certificate", "Debe adjuntar el archivo .p12.")
	}
	cert, err := signer.DecodeP12(p12, password)
	if err != nil {
		return nil, domain.NewValidationError("certificate", "No se pudo leer el certificado: archivo o contraseña inválidos.")
	}
	info := signer.Inspect(cert.Leaf)
	if strings.TrimSpace(name) == "" {
		name = info.SubjectCN
	}

	id := uuid.NewString()
	sealedP12, err := uc.box.Seal(p12, []byte(id))
	if err != nil {
		return nil, fmt.Errorf("cifrar certificado: %w", err)
	}
	pw := []byte(password)
	sealedPassword, err := uc.box.Seal(pw, []byte(id))
	secrets.Zero(pw)
	if err != nil {
		return nil, fmt.Errorf("cifrar contraseña: %w", err)
	}

	now := uc.now()
	c := &entity.Certificate{
		ID:                 id,
		OwnerID:            ownerID,
		Name:               name,
		SubjectCN:          info.SubjectCN,
		IssuerCN:           info.IssuerCN,
		IssuerOrg:          info.IssuerOrg,
		SerialNumber:       info.SerialNumber,
		ValidFrom:          info.ValidFrom,
		ValidTo:            info.ValidTo,
		FingerprintSHA1:    info.FingerprintSHA1,
		FingerprintSHA256:  info.FingerprintSHA256,
		KeyUsage:           info.KeyUsage,
		HaciendaCompatible: info.HaciendaCompatible,
		IsActive:           true,
		EncryptedP12:       sealedP12,
		EncryptedPassword:  sealedPassword,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := uc.certs.Create(ctx, c); err != nil {
		return nil, err
	}
	if err := uc.certs.DeactivateOthers(ctx, ownerID, id); err != nil {
		return nil, err
	}

	ev := uc.log.Info()
	if !c.HaciendaCompatible {
		ev = uc.log.Warn()
	}
	ev.Str("certificate_id", id).Str("subject", c.SubjectCN).Bool("compatible", c.HaciendaCompatible).
		Msg("certificado registrado")
	return ToCertificateResponse(c, now), nil
}

// List certificados del usuario con su estado a la fecha.
func (uc *CertificateUseCase) List(ctx context.Context, ownerID string) ([]dto.CertificateResponse, error) {
	list, err := uc.certs.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	out := make([]dto.CertificateResponse, 0, len(list))
	for _, c := range list {
		out = append(out, *ToCertificateResponse(c, now))
	}
	return out, nil
}

// Get detalle de un certificado del usuario.
func (uc *CertificateUseCase) Get(ctx context.Context, ownerID, id string) (*dto.CertificateResponse, error) {
	c, err := uc.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return ToCertificateResponse(c, uc.now()), nil
}

// Update renombra el certificado o cambia su estado. Activarlo desactiva los demás
// certificados del usuario: solo uno firma a la vez.
func (uc *CertificateUseCase) Update(ctx context.Context, ownerID, id string, req dto.UpdateCertificateRequest) (*dto.CertificateResponse, error) {
	c, err := uc.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "El nombre del certificado no puede estar vacío.")
		}
		c.Name = name
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	now := uc.now()
	c.UpdatedAt = now
	if err := uc.certs.Update(ctx, c); err != nil {
		return nil, err
	}
	if c.IsActive {
		if err := uc.certs.DeactivateOthers(ctx, ownerID, c.ID); err != nil {
			return nil, err
		}
	}
	uc.log.Info().Str("certificate_id", c.ID).Bool("active", c.IsActive).Msg("certificado actualizado")
	return ToCertificateResponse(c, now), nil
}

// Activate deja id como el certificado activo del usuario.
func (uc *CertificateUseCase) Activate(ctx context.Context, ownerID, id string) (*dto.CertificateResponse, error) {
	active := true
	return uc.Update(ctx, ownerID, id, dto.UpdateCertificateRequest{IsActive: &active})
}

// Validate descifra el certificado y revisa que sirva para firmar a la fecha.
// Los problemas encontrados se reportan en la respuesta, no como error.
func (uc *CertificateUseCase) Validate(ctx context.Context, ownerID, id string) (*dto.CertificateValidationResponse, error) {
	if uc.box == nil {
		return nil, &domain.CertificateError{Reason: "CERT_ENCRYPTION_KEY no configurada"}
	}
	c, err := uc.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	problems := []string{}
	if _, err := openCertificate(uc.box, c); err != nil {
		var ce *domain.CertificateError
		if !errors.As(err, &ce) {
			return nil, err
		}
		problems = append(problems, ce.Reason)
	}
	if !c.IsValidAt(now) {
		problems = append(problems, fmt.Sprintf("fuera de vigencia (%s a %s)",
			c.ValidFrom.Format(time.DateOnly), c.ValidTo.Format(time.DateOnly)))
	}
	if !c.HaciendaCompatible {
		problems = append(problems, "no es compatible con Hacienda")
	}
	return &dto.CertificateValidationResponse{
		ID:                 c.ID,
		Valid:              len(problems) == 0,
		Status:             c.Status(now),
		HaciendaCompatible: c.HaciendaCompatible,
		DaysUntilExpiry:    c.DaysUntilExpiry(now),
		Problems:           problems,
	}, nil
}

// Stats resumen de los certificados del usuario a la fecha.
func (uc *CertificateUseCase) Stats(ctx context.Context, ownerID string) (*dto.CertificateStatsResponse, error) {
	list, err := uc.certs.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	out := &dto.CertificateStatsResponse{Total: len(list)}
	for _, c := range list {
		if c.IsActive {
			out.Active++
			// La lista viene del más reciente al más antiguo, igual que GetActiveByOwner.
			if out.ActiveCertificateID == "" {
				out.ActiveCertificateID = c.ID
			}
		} else {
			out.Inactive++
		}
		switch {
		case now.After(c.ValidTo):
			out.Expired++
		case c.ValidTo.Sub(now) <= entity.ExpiringSoonWindow:
			out.ExpiringSoon++
		}
		if !c.HaciendaCompatible {
			out.Incompatible++
		}
	}
	return out, nil
}

// Delete elimina un certificado del usuario.
func (uc *CertificateUseCase) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uc.owned(ctx, ownerID, id); err != nil {
		return err
	}
	return uc.certs.Delete(ctx, id)
}

func (uc *CertificateUseCase) owned(ctx context.Context, ownerID, id string) (*entity.Certificate, error) {
	c, err := uc.certs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	if c.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return c, nil
}

// ToCertificateResponse proyección pública del certificado.
func ToCertificateResponse(c *entity.Certificate, now time.Time) *dto.CertificateResponse {
	return &dto.CertificateResponse{
		ID:                 c.ID,
		Name:               c.Name,
		SubjectCN:          c.SubjectCN,
		IssuerCN:           c.IssuerCN,
		IssuerOrg:          c.IssuerOrg,
		SerialNumber:       c.SerialNumber,
		ValidFrom:          c.ValidFrom,
		ValidTo:            c.ValidTo,
		FingerprintSHA1:    c.FingerprintSHA1,
		FingerprintSHA256:  c.FingerprintSHA256,
		KeyUsage:           c.KeyUsage,
		HaciendaCompatible: c.HaciendaCompatible,
		IsActive:           c.IsActive,
		Status:             c.Status(now),
		DaysUntilExpiry:    c.DaysUntilExpiry(now),
		CreatedAt:          c.CreatedAt,
	}
}
