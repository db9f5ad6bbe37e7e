package entity

import (
	"encoding/json"
	"time"
)

// Estados del comprobante en el servicio.
const (
	DocumentStatusPending  = "pending"  // Registrado, aún no enviado a Hacienda
	DocumentStatusSent     = "sent"     // Enviado (202), veredicto pendiente
	DocumentStatusAccepted = "accepted" // Aceptado por Hacienda
	DocumentStatusRejected = "rejected" // Rechazado por Hacienda
	DocumentStatusError    = "error"    // Error de procesamiento; admite reenvío manual
)

// Document comprobante electrónico registrado por un usuario.
// DocumentKey es inmutable una vez asignada; un reenvío crea un registro nuevo con la misma clave.
type Document struct {
	ID                string
	DocumentKey       string // clave de 50 dígitos
	DocumentType      string // 01..09
	ConsecutiveNumber string // 20 dígitos
	OwnerID           string
	CertificateID     string // vacío si se emitió en modo simulado
	Status            string
	Payload           json.RawMessage // documento validado
	XML               string
	SignedXML         string
	IssuedAt          time.Time
	SubmittedAt       *time.Time
	RespondedAt       *time.Time
	Response          json.RawMessage // veredicto crudo de Hacienda
	RemoteStatus      string          // último ind-estado conocido (informativo)
	LastPolledAt      *time.Time
	PollResponse      json.RawMessage
	ResubmissionOf    string // ID del registro en error que reemplaza
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsTerminal accepted/rejected/error no cambian más salvo por reenvío.
func (d *Document) IsTerminal() bool {
	switch d.Status {
	case DocumentStatusAccepted, DocumentStatusRejected, DocumentStatusError:
		return true
	}
	return false
}

// WasSubmitted indica si el comprobante ya pasó por Hacienda.
func (d *Document) WasSubmitted() bool {
	return d.Status != DocumentStatusPending
}
