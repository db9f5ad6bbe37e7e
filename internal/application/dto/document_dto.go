package dto

import (
	"encoding/json"
	"time"
)

// EmitResponse respuesta de POST /api/documents/validate-and-emit.
type EmitResponse struct {
	Success     bool   `json:"success"`
	XML         string `json:"xml"`
	SignedXML   string `json:"signedXml,omitempty"`
	DocumentKey string `json:"documentKey"`
	Status      string `json:"status"`
}

// ValidationErrorResponse cuerpo 400 del validador: conserva el formato {success, error, field}.
type ValidationErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

// DataResponse envoltorio {success, data} para respuestas remotas.
type DataResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ConfirmRequest cuerpo de POST /api/documents/:key/confirm.
type ConfirmRequest struct {
	URL string `json:"url"`
}

// EmailRequest cuerpo de POST /api/documents/:key/email. Sin destinatarios se usa el correo del receptor.
type EmailRequest struct {
	To []string `json:"to"`
}

// DocumentResponse vista de un registro de comprobante.
type DocumentResponse struct {
	ID                string          `json:"id"`
	DocumentKey       string          `json:"documentKey"`
	DocumentType      string          `json:"documentType"`
	ConsecutiveNumber string          `json:"consecutiveNumber"`
	Status            string          `json:"status"`
	RemoteStatus      string          `json:"remoteStatus,omitempty"`
	IssuedAt          time.Time       `json:"issuedAt"`
	SubmittedAt       *time.Time      `json:"submittedAt,omitempty"`
	RespondedAt       *time.Time      `json:"respondedAt,omitempty"`
	LastPolledAt      *time.Time      `json:"lastPolledAt,omitempty"`
	Response          json.RawMessage `json:"response,omitempty"`
	ResubmissionOf    string          `json:"resubmissionOf,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// StatusResponse resultado de la consulta de estado.
type StatusResponse struct {
	Success      bool            `json:"success"`
	DocumentKey  string          `json:"documentKey"`
	Status       string          `json:"status"`
	RemoteStatus string          `json:"remoteStatus"`
	Message      string          `json:"message,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// EventResponse entrada del historial.
type EventResponse struct {
	Kind       string          `json:"kind"`
	FromStatus string          `json:"fromStatus,omitempty"`
	ToStatus   string          `json:"toStatus,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}
