package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/hacienda-api/internal/domain"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
)

var _ repository.CertificateRepository = (*CertificateRepo)(nil)

const certificateColumns = `id, owner_id, name, subject_cn, issuer_cn, issuer_org, serial_number,
	valid_from, valid_to, fingerprint_sha1, fingerprint_sha256, key_usage, hacienda_compatible,
	is_active, encrypted_p12, encrypted_password, created_at, updated_at`

// CertificateRepo implementación de CertificateRepository sobre PostgreSQL.
type CertificateRepo struct {
	db Querier
}

// NewCertificateRepository construye el repositorio.
func NewCertificateRepository(db Querier) *CertificateRepo {
	return &CertificateRepo{db: db}
}

// Create inserta el certificado con su material ya cifrado.
func (r *CertificateRepo) Create(ctx context.Context, c *entity.Certificate) error {
	query := `INSERT INTO certificates (` + certificateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.OwnerID, c.Name, c.SubjectCN, c.IssuerCN, c.IssuerOrg, c.SerialNumber,
		c.ValidFrom, c.ValidTo, c.FingerprintSHA1, c.FingerprintSHA256, c.KeyUsage, c.HaciendaCompatible,
		c.IsActive, c.EncryptedP12, c.EncryptedPassword, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

// GetByID obtiene un certificado; (nil, nil) si no existe.
func (r *CertificateRepo) GetByID(ctx context.Context, id string) (*entity.Certificate, error) {
	c, err := scanCertificate(r.db.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return c, nil
}

// ListByOwner certificados del usuario, el más reciente primero.
func (r *CertificateRepo) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Certificate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()
	var list []*entity.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// GetActiveByOwner certificado activo más reciente; (nil, nil) si no hay.
func (r *CertificateRepo) GetActiveByOwner(ctx context.Context, ownerID string) (*entity.Certificate, error) {
	c, err := scanCertificate(r.db.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM certificates
		WHERE owner_id = $1 AND is_active ORDER BY created_at DESC LIMIT 1`, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active certificate: %w", err)
	}
	return c, nil
}

// Update persiste nombre y estado activo; domain.ErrNotFound si no existe.
func (r *CertificateRepo) Update(ctx context.Context, c *entity.Certificate) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE certificates SET name = $2, is_active = $3, updated_at = $4 WHERE id = $1`,
		c.ID, c.Name, c.IsActive, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeactivateOthers deja activo solo keepID.
func (r *CertificateRepo) DeactivateOthers(ctx context.Context, ownerID, keepID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE certificates SET is_active = false, updated_at = now()
		WHERE owner_id = $1 AND id <> $2 AND is_active`, ownerID, keepID)
	if err != nil {
		return fmt.Errorf("deactivate certificates: %w", err)
	}
	return nil
}

// Delete elimina el certificado; domain.ErrNotFound si no existía.
func (r *CertificateRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM certificates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCertificate(row pgx.Row) (*entity.Certificate, error) {
	var c entity.Certificate
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.SubjectCN, &c.IssuerCN, &c.IssuerOrg, &c.SerialNumber,
		&c.ValidFrom, &c.ValidTo, &c.FingerprintSHA1, &c.FingerprintSHA256, &c.KeyUsage, &c.HaciendaCompatible,
		&c.IsActive, &c.EncryptedP12, &c.EncryptedPassword, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
