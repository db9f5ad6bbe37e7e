// Package analytics contiene el resumen de comprobantes emitidos por usuario.
package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/hacienda-api/internal/application/dto"
	"github.com/jhoicas/hacienda-api/internal/domain/entity"
	"github.com/jhoicas/hacienda-api/internal/domain/repository"
)

// Los rangos se calculan en hora de Costa Rica (UTC-6, sin horario de verano).
var costaRica = time.FixedZone("America/Costa_Rica", -6*60*60)

// SummaryUseCase genera el resumen del día y del mes en curso.
//
// Fuente de datos: AnalyticsRepository (consultas read-only).
type SummaryUseCase struct {
	analyticsRepo repository.AnalyticsRepository
	now           func() time.Time
}

// NewSummaryUseCase construye el caso de uso.
func NewSummaryUseCase(analyticsRepo repository.AnalyticsRepository) *SummaryUseCase {
	return &SummaryUseCase{analyticsRepo: analyticsRepo, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (uc *SummaryUseCase) WithClock(now func() time.Time) *SummaryUseCase {
	uc.now = now
	return uc
}

// GetSummary consulta en paralelo los conteos de hoy y del mes.
func (uc *SummaryUseCase) GetSummary(ctx context.Context, ownerID string) (*dto.DocumentSummaryResponse, error) {
	now := uc.now().In(costaRica)

	// ── Rangos de fecha ────────────────────────────────────────────────────────
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, costaRica)
	todayEnd := todayStart.Add(24*time.Hour - time.Nanosecond)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, costaRica)

	var today, month []repository.DocumentCount
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		today, err = uc.analyticsRepo.CountDocuments(gctx, ownerID, todayStart, todayEnd)
		if err != nil {
			return fmt.Errorf("resumen: conteo de hoy: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		month, err = uc.analyticsRepo.CountDocuments(gctx, ownerID, monthStart, todayEnd)
		if err != nil {
			return fmt.Errorf("resumen: conteo del mes: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byType := make(map[string]int)
	for _, c := range month {
		byType[c.DocumentType] += c.Count
	}
	return &dto.DocumentSummaryResponse{
		Today:     totals(today),
		Month:     totals(month),
		MonthType: byType,
		DateLabel: monthLabel(now),
	}, nil
}

func totals(counts []repository.DocumentCount) dto.StatusTotals {
	var t dto.StatusTotals
	for _, c := range counts {
		switch c.Status {
		case entity.DocumentStatusPending:
			t.Pending += c.Count
		case entity.DocumentStatusSent:
			t.Sent += c.Count
		case entity.DocumentStatusAccepted:
			t.Accepted += c.Count
		case entity.DocumentStatusRejected:
			t.Rejected += c.Count
		case entity.DocumentStatusError:
			t.Error += c.Count
		}
		t.Total += c.Count
	}
	return t
}

// monthLabel devuelve una etiqueta legible del mes, ej: "Marzo 2030".
func monthLabel(t time.Time) string {
	months := [...]string{
		"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
		"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
	}
	return fmt.Sprintf("%s %d", months[t.Month()-1], t.Year())
}
