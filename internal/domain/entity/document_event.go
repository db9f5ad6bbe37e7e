package entity

import (
	"encoding/json"
	"time"
)

// Tipos de evento de auditoría.
const (
	EventRegistered   = "registered"
	EventSubmitted    = "submitted"
	EventResponse     = "response"
	EventPoll         = "poll"
	EventConfirmation = "confirmation"
	EventResubmitted  = "resubmitted"
)

// DocumentEvent entrada append-only del historial de un comprobante.
type DocumentEvent struct {
	ID          string
	DocumentID  string
	DocumentKey string
	Kind        string
	FromStatus  string
	ToStatus    string
	Detail      json.RawMessage
	CreatedAt   time.Time
}
