package repository

import (
	"context"
	"time"
)

// DocumentCount cantidad de registros por estado y tipo de comprobante.
// Lo produce la DB; el use case lo agrega en el DTO.
type DocumentCount struct {
	Status       string
	DocumentType string
	Count        int
}

// AnalyticsRepository consultas de solo lectura para el resumen de comprobantes.
type AnalyticsRepository interface {
	// CountDocuments agrupa los registros del usuario emitidos en [from, to] por estado y tipo.
	CountDocuments(ctx context.Context, ownerID string, from, to time.Time) ([]DocumentCount, error)
}
