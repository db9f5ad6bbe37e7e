package dto

import "time"

// CertificateResponse metadatos de un certificado; nunca incluye el material cifrado.
type CertificateResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	SubjectCN          string    `json:"subjectCN"`
	IssuerCN           string    `json:"issuerCN"`
	IssuerOrg          string    `json:"issuerOrg"`
	SerialNumber       string    `json:"serialNumber"`
	ValidFrom          time.Time `json:"validFrom"`
	ValidTo            time.Time `json:"validTo"`
	FingerprintSHA1    string    `json:"fingerprintSha1"`
	FingerprintSHA256  string    `json:"fingerprintSha256"`
	KeyUsage           []string  `json:"keyUsage"`
	HaciendaCompatible bool      `json:"haciendaCompatible"`
	IsActive           bool      `json:"isActive"`
	Status             string    `json:"status"`
	DaysUntilExpiry    int       `json:"daysUntilExpiry"`
	CreatedAt          time.Time `json:"createdAt"`
}

// UpdateCertificateRequest cambios sobre un certificado; los campos ausentes no se tocan.
type UpdateCertificateRequest struct {
	Name     *string `json:"name,omitempty" example:"Firma principal"`
	IsActive *bool   `json:"isActive,omitempty" example:"true"`
}

// CertificateValidationResponse resultado de comprobar que el certificado puede firmar hoy.
type CertificateValidationResponse struct {
	ID                 string   `json:"id"`
	Valid              bool     `json:"valid"`
	Status             string   `json:"status" example:"active"`
	HaciendaCompatible bool     `json:"haciendaCompatible"`
	DaysUntilExpiry    int      `json:"daysUntilExpiry"`
	Problems           []string `json:"problems"`
}

// CertificateStatsResponse resumen de los certificados del usuario.
type CertificateStatsResponse struct {
	Total               int    `json:"total"`
	Active              int    `json:"active"`
	Inactive            int    `json:"inactive"`
	Expired             int    `json:"expired"`
	ExpiringSoon        int    `json:"expiringSoon"`
	Incompatible        int    `json:"incompatible"`
	ActiveCertificateID string `json:"activeCertificateId,omitempty"`
}
