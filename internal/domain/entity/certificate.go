package entity

import "time"

// Estados derivados del certificado.
const (
	CertificateStatusInactive     = "inactive"
	CertificateStatusExpired      = "expired"
	CertificateStatusExpiringSoon = "expiring_soon"
	CertificateStatusActive       = "active"
)

// ExpiringSoonWindow margen a partir del cual se avisa del vencimiento.
const ExpiringSoonWindow = 30 * 24 * time.Hour

// Certificate llave criptográfica (.p12) del emisor. El contenido y la contraseña
// solo se guardan cifrados con la llave del servicio.
type Certificate struct {
	ID                 string
	OwnerID            string
	Name               string
	SubjectCN          string
	IssuerCN           string
	IssuerOrg          string
	SerialNumber       string
	ValidFrom          time.Time
	ValidTo            time.Time
	FingerprintSHA1    string
	FingerprintSHA256  string
	KeyUsage           []string
	HaciendaCompatible bool
	IsActive           bool
	EncryptedP12       []byte
	EncryptedPassword  []byte
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsValidAt indica si now cae dentro de la vigencia.
func (c *Certificate) IsValidAt(now time.Time) bool {
	return !now.Before(c.ValidFrom) && !now.After(c.ValidTo)
}

// Status estado derivado a la fecha indicada.
func (c *Certificate) Status(now time.Time) string {
	switch {
	case !c.IsActive:
		return CertificateStatusInactive
	case now.After(c.ValidTo):
		return CertificateStatusExpired
	case c.ValidTo.Sub(now) <= ExpiringSoonWindow:
		return CertificateStatusExpiringSoon
	default:
		return CertificateStatusActive
	}
}

// DaysUntilExpiry días completos restantes (negativo si ya venció).
func (c *Certificate) DaysUntilExpiry(now time.Time) int {
	return int(c.ValidTo.Sub(now).Hours() / 24)
}
